package authflow

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventRegisterSuccess     ActivityEventType = "auth.register.success"
	ActivityEventRegisterFailure     ActivityEventType = "auth.register.failure"
	ActivityEventLogout              ActivityEventType = "auth.logout"
	ActivityEventEmailConfirmed      ActivityEventType = "auth.email.confirmed"
	ActivityEventVerificationResent  ActivityEventType = "auth.email.verification_resent"
	ActivityEventProfileUpdated      ActivityEventType = "onboarding.profile.updated"
	ActivityEventProfilePartialWrite ActivityEventType = "onboarding.profile.partial_write"
	ActivityEventRedirect            ActivityEventType = "onboarding.redirect"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	Redirect   string
	ErrorKind  AuthErrorKind
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best effort, errors are logged and never fail an action.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
