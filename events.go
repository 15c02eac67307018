package authflow

import "time"

// SessionEventKind enumerates the "auth state changed" notifications
type SessionEventKind string

const (
	// EventInitialSession is emitted once a subscription is established
	EventInitialSession SessionEventKind = "INITIAL_SESSION"
	// EventSignedIn is emitted when a session is established
	EventSignedIn SessionEventKind = "SIGNED_IN"
	// EventSignedOut is emitted when the session is cleared
	EventSignedOut SessionEventKind = "SIGNED_OUT"
	// EventTokenRefreshed is emitted when the access token rotates
	EventTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
	// EventUserUpdated is emitted when the user record changes
	EventUserUpdated SessionEventKind = "USER_UPDATED"
	// EventEmailConfirmed is emitted when the out of band verification link
	// confirms the email of an existing session
	EventEmailConfirmed SessionEventKind = "EMAIL_CONFIRMED"
)

// SessionEvent is a single notification of the backend change stream.
// Session is nil when the event clears the session.
type SessionEvent struct {
	ID         string           `json:"id"`
	Kind       SessionEventKind `json:"kind"`
	Session    *Session         `json:"session,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// ConfirmsEmail reports whether the event signals a newly confirmed email
// on an existing session
func (e SessionEvent) ConfirmsEmail() bool {
	return e.Kind == EventEmailConfirmed && e.Session != nil && e.Session.EmailVerified
}

// CarriesSession reports whether the event carries a session payload
func (e SessionEvent) CarriesSession() bool {
	return e.Session != nil && e.Kind != EventSignedOut
}
