package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Claims is the access token payload
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenService signs and validates HS256 access tokens
type TokenService struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
}

// NewTokenService returns a token service for cfg
func NewTokenService(cfg Config) *TokenService {
	return &TokenService{
		signingKey: []byte(cfg.SigningKey),
		expiration: cfg.TokenExpiration,
		issuer:     cfg.Issuer,
		audience:   jwt.ClaimStrings(cfg.Audience),
		now:        time.Now,
	}
}

// Generate mints an access token for the user
func (ts *TokenService) Generate(userID uuid.UUID, email string) (string, error) {
	now := ts.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   userID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Validate parses tokenString and returns its claims
func (ts *TokenService) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(ts.now)}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, opts...)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "token expired").
				WithTextCode("TOKEN_EXPIRED").
				WithCode(goerrors.CodeUnauthorized)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "malformed token").
			WithTextCode("TOKEN_MALFORMED").
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, goerrors.New("unable to decode session", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}
	return claims, nil
}
