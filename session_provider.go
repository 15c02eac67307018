package authflow

import (
	"context"
	"strings"
)

// SessionProvider wraps the raw Backend. It validates input locally, so
// malformed requests never reach the backend, normalizes emails, and
// classifies every backend failure into an AuthError.
type SessionProvider struct {
	backend Backend
	logger  Logger
}

// SessionProviderOption customizes a SessionProvider
type SessionProviderOption func(*SessionProvider)

// WithSessionProviderLogger overrides the logger
func WithSessionProviderLogger(l Logger) SessionProviderOption {
	return func(p *SessionProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewSessionProvider returns a provider over backend
func NewSessionProvider(backend Backend, opts ...SessionProviderOption) *SessionProvider {
	p := &SessionProvider{
		backend: backend,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// SignUp registers a new account. The returned session is never verified
// and carries no access token; it becomes usable after verification.
func (p *SessionProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if err := ValidateSignUp(email, password); err != nil {
		return nil, err
	}

	session, err := p.backend.SignUp(ctx, email, password)
	if err != nil {
		return nil, p.classify("sign up", err)
	}
	if session == nil {
		return nil, NewUnknownError("sign up returned no user")
	}

	out := *session
	out.EmailVerified = false
	out.AccessToken = ""
	return &out, nil
}

// SignIn authenticates and merges the profile, fetched separately. An
// unverified email is not rejected here, guards decide usability.
func (p *SessionProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateSignIn(email, password); err != nil {
		return nil, err
	}

	session, err := p.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, p.classify("sign in", err)
	}
	if session == nil {
		return nil, NewUnknownError("sign in returned no session")
	}

	return p.withProfile(ctx, session), nil
}

// SignOut clears the backend session
func (p *SessionProvider) SignOut(ctx context.Context) error {
	if err := p.backend.SignOut(ctx); err != nil {
		return p.classify("sign out", err)
	}
	return nil
}

// CurrentUser returns the active user merged with its profile, or nil
// without error when no session exists.
func (p *SessionProvider) CurrentUser(ctx context.Context) (*User, error) {
	session, err := p.backend.CurrentSession(ctx)
	if err != nil {
		return nil, p.classify("get current user", err)
	}
	if session == nil {
		return nil, nil
	}
	return p.withProfile(ctx, session), nil
}

// ResendVerificationEmail asks the backend to send the link again. It is
// idempotent; backend throttling surfaces as KindRateLimited.
func (p *SessionProvider) ResendVerificationEmail(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := p.backend.ResendVerification(ctx, email); err != nil {
		return p.classify("resend verification", err)
	}
	return nil
}

// Profile reads the authoritative profile
func (p *SessionProvider) Profile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := p.backend.GetProfile(ctx, userID)
	if err != nil {
		return nil, p.classify("get profile", err)
	}
	return profile, nil
}

// UpdateProfile writes the general profile fields
func (p *SessionProvider) UpdateProfile(ctx context.Context, userID string, fields ProfileFields) error {
	if fields.Username != nil {
		trimmed := strings.TrimSpace(*fields.Username)
		fields.Username = &trimmed
	}
	if err := p.backend.UpdateProfile(ctx, userID, fields); err != nil {
		return p.classify("update profile", err)
	}
	return nil
}

// UpdateInterests replaces the interest set
func (p *SessionProvider) UpdateInterests(ctx context.Context, userID string, interests []string) error {
	if err := p.backend.UpdateInterests(ctx, userID, dedupe(interests)); err != nil {
		return p.classify("update interests", err)
	}
	return nil
}

// UpdateSubInterests replaces the sub interest set
func (p *SessionProvider) UpdateSubInterests(ctx context.Context, userID string, subInterests []string) error {
	if err := p.backend.UpdateSubInterests(ctx, userID, dedupe(subInterests)); err != nil {
		return p.classify("update sub interests", err)
	}
	return nil
}

// Subscribe exposes the backend change stream
func (p *SessionProvider) Subscribe() (<-chan SessionEvent, func()) {
	return p.backend.Subscribe()
}

// withProfile merges the profile into the session. A missing profile is
// not an error: profile creation happens out of band.
func (p *SessionProvider) withProfile(ctx context.Context, session *Session) *User {
	user := &User{Session: *session}
	profile, err := p.backend.GetProfile(ctx, session.ID)
	if err != nil {
		p.logger.Warn("profile unavailable for user %s: %v", session.ID, err)
		return user
	}
	user.Profile = profile
	return user
}

func (p *SessionProvider) classify(op string, err error) *AuthError {
	authErr := ClassifyError(err)
	p.logger.Debug("%s failed: kind=%s original=%v", op, authErr.Kind, err)
	return authErr
}

func dedupe(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
