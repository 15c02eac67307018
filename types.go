package authflow

import (
	"context"
	"fmt"
	"sync"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the routes the auth flow redirects to outside of the
// onboarding step registry
type Config interface {
	GetHomeRoute() string
	GetEntryRoute() string
	GetLoginRoute() string
	GetRegisterRoute() string
	GetVerifyEmailRoute() string
}

// Backend is the raw boundary with the backend-as-a-service. Errors
// returned here carry the backend's own messages and are classified by
// SessionProvider before reaching callers.
type Backend interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// CurrentSession returns nil, nil when no session is active.
	CurrentSession(ctx context.Context) (*Session, error)
	ResendVerification(ctx context.Context, email string) error

	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, fields ProfileFields) error
	UpdateInterests(ctx context.Context, userID string, interests []string) error
	UpdateSubInterests(ctx context.Context, userID string, subInterests []string) error

	// Subscribe returns the "auth state changed" stream. Events are delivered
	// in the order the backend publishes them. The returned function
	// releases the subscription.
	Subscribe() (<-chan SessionEvent, func())
}

// Navigator performs redirects requested by the store and the guards
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(route string) {
	if f != nil {
		f(route)
	}
}

// PendingEmailStore is the durable recovery slot for the email of a
// registration awaiting verification
type PendingEmailStore interface {
	SavePendingEmail(ctx context.Context, email string) error
	// PendingEmail returns an empty string when nothing is stored.
	PendingEmail(ctx context.Context) (string, error)
	ClearPendingEmail(ctx context.Context) error
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}

type memoryPendingEmailStore struct {
	mu    sync.Mutex
	email string
}

func (m *memoryPendingEmailStore) SavePendingEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = email
	return nil
}

func (m *memoryPendingEmailStore) PendingEmail(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.email, nil
}

func (m *memoryPendingEmailStore) ClearPendingEmail(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = ""
	return nil
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHFLOW "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
