package backend

import "errors"

// Raw messages returned by the backend. They mirror the wording of hosted
// auth services so the client side classifier is exercised end to end.
const (
	msgAlreadyRegistered  = "User already registered"
	msgInvalidCredentials = "Invalid login credentials"
	msgEmailNotConfirmed  = "Email not confirmed"
	msgRateLimited        = "email rate limit exceeded"
	msgWeakPassword       = "Password should be at least %d characters and contain upper case, lower case and digits"
	msgInvalidEmail       = "Unable to validate email address: invalid format"
	msgSessionMissing     = "Auth session missing!"
	msgRowSecurity        = "new row violates row-level security policy for table \"profiles\""
	msgSignupDisabled     = "Signups not allowed for this instance"
	msgConfirmationEmail  = "Error sending confirmation email"
	msgClientClosed       = "client is closed"
)

var (
	errInvalidCredentials = errors.New(msgInvalidCredentials)
	errSessionMissing     = errors.New(msgSessionMissing)
	errRowSecurity        = errors.New(msgRowSecurity)
	errSignupDisabled     = errors.New(msgSignupDisabled)
	errClientClosed       = errors.New(msgClientClosed)
)
