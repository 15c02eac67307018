package authflow

import (
	"context"
	"sync"
)

// BlockedAction is emitted when an action is gated on email verification
type BlockedAction struct {
	Label string
	Email string
}

// VerificationGuardOption customizes an EmailVerificationGuard
type VerificationGuardOption func(*EmailVerificationGuard)

// WithOnBlocked sets a callback invoked every time an action is blocked,
// the hook used to open the verification modal
func WithOnBlocked(fn func(BlockedAction)) VerificationGuardOption {
	return func(g *EmailVerificationGuard) {
		g.onBlocked = fn
	}
}

// WithVerificationGuardLogger overrides the logger
func WithVerificationGuardLogger(l Logger) VerificationGuardOption {
	return func(g *EmailVerificationGuard) {
		if l != nil {
			g.logger = l
		}
	}
}

// EmailVerificationGuard gates user initiated actions, not routes, until
// the session email is verified. A blocked action is never retried: the
// user verifies and triggers the action again.
type EmailVerificationGuard struct {
	store  *Store
	logger Logger

	mu        sync.Mutex
	pending   string
	open      bool
	onBlocked func(BlockedAction)
	blocked   chan BlockedAction
}

// NewEmailVerificationGuard returns a guard reading from store
func NewEmailVerificationGuard(store *Store, opts ...VerificationGuardOption) *EmailVerificationGuard {
	g := &EmailVerificationGuard{
		store:   store,
		logger:  defLogger{},
		blocked: make(chan BlockedAction, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Check returns true when the current session email is verified. Otherwise
// it records label as the pending action, signals the modal and returns
// false; the caller must not proceed.
func (g *EmailVerificationGuard) Check(label string) bool {
	user := g.store.User()
	if user != nil && user.EmailVerified {
		return true
	}

	action := BlockedAction{Label: label}
	if user != nil {
		action.Email = user.Email
	}

	g.mu.Lock()
	g.pending = label
	g.open = true
	onBlocked := g.onBlocked
	g.mu.Unlock()

	g.logger.Debug("action %q blocked until email is verified", label)

	// keep only the latest signal
	select {
	case <-g.blocked:
	default:
	}
	select {
	case g.blocked <- action:
	default:
	}

	if onBlocked != nil {
		onBlocked(action)
	}
	return false
}

// Blocked delivers the most recent blocked action
func (g *EmailVerificationGuard) Blocked() <-chan BlockedAction {
	return g.blocked
}

// PendingAction returns the label of the last blocked action, if any
func (g *EmailVerificationGuard) PendingAction() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pending != ""
}

// IsOpen reports whether the verification modal should be displayed
func (g *EmailVerificationGuard) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Dismiss closes the modal and forgets the pending action
func (g *EmailVerificationGuard) Dismiss() {
	g.mu.Lock()
	g.pending = ""
	g.open = false
	g.mu.Unlock()
}

// Resend asks for a new verification email. The pending action is kept,
// the user retries it once verified.
func (g *EmailVerificationGuard) Resend(ctx context.Context) bool {
	email := ""
	if u := g.store.User(); u != nil {
		email = u.Email
	}
	return g.store.ResendVerificationEmail(ctx, email)
}
