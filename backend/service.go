// Package backend is an in-process backend-as-a-service implementing the
// raw authflow.Backend boundary over the bun repositories. It is used for
// local development and end to end tests of the auth flow.
package backend

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/mailer"
	"github.com/goliatone/go-authflow/ratelimit"
	"github.com/goliatone/go-authflow/repository"
)

// Option customizes a Service
type Option func(*Service)

// WithMailer sets the mailer used for verification links
func WithMailer(m mailer.Mailer) Option {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithLimiter overrides the resend limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithFeatureGate gates sign up behind gate.FeatureUsersSignup
func WithFeatureGate(fg gate.FeatureGate) Option {
	return func(s *Service) {
		s.featureGate = fg
	}
}

// WithLogger overrides the logger
func WithLogger(l authflow.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDeterministicIDs derives user ids from the email with hashid
func WithDeterministicIDs() Option {
	return func(s *Service) {
		s.useHashid = true
	}
}

// WithClock injects a custom clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service owns the accounts and hands out per process Clients
type Service struct {
	cfg         Config
	repo        repository.Manager
	tokens      *TokenService
	mailer      mailer.Mailer
	limiter     ratelimit.Limiter
	featureGate gate.FeatureGate
	logger      authflow.Logger
	now         func() time.Time
	useHashid   bool

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewService validates cfg and builds a Service over repo
func NewService(repo repository.Manager, cfg Config, opts ...Option) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := repo.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid repository manager")
	}

	s := &Service{
		cfg:     cfg,
		repo:    repo,
		tokens:  NewTokenService(cfg),
		mailer:  mailer.Noop{},
		limiter: ratelimit.NewMemory(ratelimit.Rule{Limit: cfg.ResendLimit, Window: cfg.ResendWindow}),
		logger:  nopLogger{},
		now:     time.Now,
		clients: map[*Client]struct{}{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.tokens.now = s.now

	return s, nil
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	return s.cfg
}

// NewClient returns a client with no session, one per app process
func (s *Service) NewClient() *Client {
	c := &Client{
		svc:  s,
		subs: map[int]chan authflow.SessionEvent{},
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	return c
}

func (s *Service) detach(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// ConfirmEmailResponse reports the outcome of a confirmation link click
type ConfirmEmailResponse struct {
	Found            bool   `json:"found"`
	Expired          bool   `json:"expired"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
	UserID           string `json:"user_id,omitempty"`
	Email            string `json:"email,omitempty"`
}

// ConfirmEmail consumes a verification token. The email flips to verified
// exactly once; clients holding that user's session, or awaiting its
// verification, receive an EMAIL_CONFIRMED event carrying a usable session.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (*ConfirmEmailResponse, error) {
	resp := &ConfirmEmailResponse{}

	id, err := uuid.Parse(token)
	if err != nil {
		return resp, nil
	}

	now := s.now()
	var confirmed bool
	var user *repository.UserRecord

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.VerificationTokens().FindTx(ctx, tx, id)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve verification token")
		}

		resp.Found = true
		resp.UserID = record.UserID.String()
		resp.Email = record.Email

		if record.ConsumedAt != nil || record.Expired(now) {
			resp.Expired = true
			return nil
		}

		if err := s.repo.VerificationTokens().ConsumeTx(ctx, tx, id, now); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}

		confirmed, err = s.repo.Users().MarkEmailVerifiedTx(ctx, tx, record.UserID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
		}
		resp.AlreadyConfirmed = !confirmed

		user, err = s.repo.Users().FindByIDTx(ctx, tx, record.UserID)
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "email confirmation transaction failed")
	}

	s.logger.Info("email confirmation: %s", print.MaybePrettyJSON(resp))

	if confirmed && user != nil {
		s.broadcastConfirmed(user)
	}
	return resp, nil
}

func (s *Service) broadcastConfirmed(user *repository.UserRecord) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.onEmailConfirmed(user)
	}
}

func (s *Service) signUp(ctx context.Context, email, password string) (*repository.UserRecord, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password, s.cfg.MinPasswordLength); err != nil {
		return nil, err
	}

	if err := requireFeatureGate(ctx, s.featureGate, gate.FeatureUsersSignup, errSignupDisabled); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &repository.UserRecord{
		Email:        email,
		PasswordHash: hash,
	}
	if s.useHashid {
		if id, err := newHashID(email); err == nil {
			user.ID = id
		}
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().FindByEmailTx(ctx, tx, email); err == nil {
			return goerrors.New(msgAlreadyRegistered, goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict)
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		created, err := s.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created

		return s.repo.Profiles().CreateTx(ctx, tx, &repository.ProfileRecord{
			UserID:         user.ID,
			OnboardingStep: authflow.StepInterests,
		})
	})
	if err != nil {
		return nil, err
	}

	// the account is committed, a resend can still deliver the link
	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Error("%s to %s: %v", msgConfirmationEmail, user.Email, err)
	}

	return user, nil
}

func (s *Service) signIn(ctx context.Context, email, password string) (*repository.UserRecord, string, error) {
	user, err := s.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, "", errInvalidCredentials
		}
		return nil, "", err
	}

	ok, err := comparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password")
	}
	if !ok {
		return nil, "", errInvalidCredentials
	}

	if s.cfg.RequireConfirmedEmail && !user.EmailVerified {
		return nil, "", goerrors.New(msgEmailNotConfirmed, goerrors.CategoryAuth).
			WithCode(goerrors.CodeBadRequest)
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}

	if err := s.repo.Users().TrackSuccessfulLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to track login for %s: %v", user.ID, err)
	}

	return user, token, nil
}

func (s *Service) resendVerification(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	allowed, err := s.limiter.Allow(ctx, ratelimit.KeyEmail(email))
	if err != nil {
		return err
	}
	if !allowed {
		return goerrors.New(msgRateLimited, goerrors.CategoryRateLimit).
			WithCode(http.StatusTooManyRequests)
	}

	user, err := s.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// unknown addresses succeed silently
			return nil
		}
		return err
	}

	if user.EmailVerified {
		return nil
	}

	return s.sendVerification(ctx, user)
}

func (s *Service) sendVerification(ctx context.Context, user *repository.UserRecord) error {
	token, err := s.repo.VerificationTokens().Issue(ctx, user.ID, user.Email, s.cfg.VerificationTTL)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification token")
	}

	link, err := verificationLink(s.cfg.VerificationURL, token.ID.String())
	if err != nil {
		return err
	}

	return s.mailer.Send(ctx, mailer.VerificationMessage(user.Email, link, token.ID.String()))
}

// session builds the session for user, refreshing the verified flag from storage
func (s *Service) session(ctx context.Context, token string) (*authflow.Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid token subject")
	}

	user, err := s.repo.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSession(user, token), nil
}

func verificationLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid verification url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toSession(user *repository.UserRecord, token string) *authflow.Session {
	out := &authflow.Session{
		ID:            user.ID.String(),
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		AccessToken:   token,
	}
	if user.CreatedAt != nil {
		out.CreatedAt = *user.CreatedAt
	}
	if user.UpdatedAt != nil {
		out.UpdatedAt = *user.UpdatedAt
	}
	return out
}

func toProfile(snapshot *repository.ProfileSnapshot) *authflow.Profile {
	out := &authflow.Profile{
		UserID:         snapshot.UserID.String(),
		OnboardingStep: snapshot.OnboardingStep,
		Interests:      snapshot.Interests,
		SubInterests:   snapshot.SubInterests,
		DealBreakers:   snapshot.DealBreakers,
		Username:       snapshot.Username,
		DisplayName:    snapshot.DisplayName,
		AvatarURL:      snapshot.AvatarURL,
	}
	if snapshot.UpdatedAt != nil {
		out.UpdatedAt = *snapshot.UpdatedAt
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
