package backend

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the settings of the local backend
type Config struct {
	SigningKey      string
	Issuer          string
	Audience        []string
	TokenExpiration time.Duration
	// VerificationURL is the confirmation link base, the token is
	// appended as the "token" query parameter.
	VerificationURL string
	VerificationTTL time.Duration
	ResendLimit     int
	ResendWindow    time.Duration
	// RequireConfirmedEmail rejects sign in until the email is verified.
	RequireConfirmedEmail bool
	MinPasswordLength     int
	BcryptCost            int
	EventBuffer           int
}

// DefaultConfig returns a config with every field but SigningKey set
func DefaultConfig() Config {
	return Config{
		Issuer:            "authflow",
		TokenExpiration:   24 * time.Hour,
		VerificationURL:   "http://localhost:3000/auth/confirm",
		VerificationTTL:   24 * time.Hour,
		ResendLimit:       1,
		ResendWindow:      time.Minute,
		MinPasswordLength: 8,
		BcryptCost:        bcrypt.DefaultCost,
		EventBuffer:       16,
	}
}

// Validate reports a misconfiguration
func (c Config) Validate() error {
	if strings.TrimSpace(c.SigningKey) == "" {
		return goerrors.New("backend signing key is required", goerrors.CategoryBadInput).
			WithTextCode("BACKEND_MISCONFIGURED")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost) {
		return goerrors.New("bcrypt cost out of range", goerrors.CategoryBadInput).
			WithTextCode("BACKEND_MISCONFIGURED").
			WithMetadata(map[string]any{"cost": c.BcryptCost})
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Issuer == "" {
		c.Issuer = def.Issuer
	}
	if c.TokenExpiration <= 0 {
		c.TokenExpiration = def.TokenExpiration
	}
	if c.VerificationURL == "" {
		c.VerificationURL = def.VerificationURL
	}
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = def.VerificationTTL
	}
	if c.ResendWindow <= 0 {
		c.ResendWindow = def.ResendWindow
	}
	if c.ResendLimit <= 0 {
		c.ResendLimit = def.ResendLimit
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = def.MinPasswordLength
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = def.BcryptCost
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}

// LoadConfig reads AUTHFLOW_* variables, loading the given .env files
// first when they exist
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load env file")
	}

	cfg := DefaultConfig()
	cfg.SigningKey = os.Getenv("AUTHFLOW_SIGNING_KEY")
	cfg.Issuer = envString("AUTHFLOW_ISSUER", cfg.Issuer)
	cfg.VerificationURL = envString("AUTHFLOW_VERIFICATION_URL", cfg.VerificationURL)
	if aud := os.Getenv("AUTHFLOW_AUDIENCE"); aud != "" {
		cfg.Audience = strings.Split(aud, ",")
	}

	var err error
	if cfg.TokenExpiration, err = envDuration("AUTHFLOW_TOKEN_TTL", cfg.TokenExpiration); err != nil {
		return Config{}, err
	}
	if cfg.VerificationTTL, err = envDuration("AUTHFLOW_VERIFICATION_TTL", cfg.VerificationTTL); err != nil {
		return Config{}, err
	}
	if cfg.ResendWindow, err = envDuration("AUTHFLOW_RESEND_WINDOW", cfg.ResendWindow); err != nil {
		return Config{}, err
	}
	if cfg.ResendLimit, err = envInt("AUTHFLOW_RESEND_LIMIT", cfg.ResendLimit); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = envInt("AUTHFLOW_BCRYPT_COST", cfg.BcryptCost); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv("AUTHFLOW_REQUIRE_CONFIRMED_EMAIL"); raw != "" {
		if cfg.RequireConfirmedEmail, err = strconv.ParseBool(raw); err != nil {
			return Config{}, envError("AUTHFLOW_REQUIRE_CONFIRMED_EMAIL", err)
		}
	}

	return cfg, cfg.Validate()
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, envError(key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, envError(key, err)
	}
	return n, nil
}

func envError(key string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid environment variable").
		WithMetadata(map[string]any{"key": key})
}
