package authflow

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// AuthErrorKind is the closed set of reasons an auth operation can fail
type AuthErrorKind string

const (
	KindAlreadyRegistered  AuthErrorKind = "ALREADY_REGISTERED"
	KindInvalidCredentials AuthErrorKind = "INVALID_CREDENTIALS"
	KindEmailNotConfirmed  AuthErrorKind = "EMAIL_NOT_CONFIRMED"
	KindRateLimited        AuthErrorKind = "RATE_LIMITED"
	KindWeakPassword       AuthErrorKind = "WEAK_PASSWORD"
	KindInvalidEmailFormat AuthErrorKind = "INVALID_EMAIL_FORMAT"
	KindNetworkError       AuthErrorKind = "NETWORK_ERROR"
	KindUnknown            AuthErrorKind = "UNKNOWN"
)

const defaultUnknownMessage = "Something went wrong. Please try again."

var kindMessages = map[AuthErrorKind]string{
	KindAlreadyRegistered:  "An account with this email already exists. Try signing in instead.",
	KindInvalidCredentials: "Invalid email or password.",
	KindEmailNotConfirmed:  "Please verify your email address before signing in.",
	KindRateLimited:        "Too many requests. Please wait a moment and try again.",
	KindWeakPassword:       "Password must be at least 8 characters and include an uppercase letter, a lowercase letter, and a number.",
	KindInvalidEmailFormat: "Please enter a valid email address.",
	KindNetworkError:       "Network error. Check your connection and try again.",
}

// AuthError is a classified, user presentable failure. Original keeps the
// underlying error for logs; it is never used as the display message
// except for KindUnknown.
type AuthError struct {
	Kind     AuthErrorKind
	Message  string
	Original error
}

// Sentinels usable with errors.Is, matching on Kind.
var (
	ErrAlreadyRegistered  = newAuthError(KindAlreadyRegistered, nil)
	ErrInvalidCredentials = newAuthError(KindInvalidCredentials, nil)
	ErrEmailNotConfirmed  = newAuthError(KindEmailNotConfirmed, nil)
	ErrRateLimited        = newAuthError(KindRateLimited, nil)
	ErrWeakPassword       = newAuthError(KindWeakPassword, nil)
	ErrInvalidEmailFormat = newAuthError(KindInvalidEmailFormat, nil)
	ErrNetwork            = newAuthError(KindNetworkError, nil)
)

func newAuthError(kind AuthErrorKind, original error) *AuthError {
	msg, ok := kindMessages[kind]
	if !ok {
		msg = defaultUnknownMessage
		if original != nil && strings.TrimSpace(original.Error()) != "" {
			msg = original.Error()
		}
	}
	return &AuthError{Kind: kind, Message: msg, Original: original}
}

// NewUnknownError preserves msg as the display message
func NewUnknownError(msg string) *AuthError {
	return newAuthError(KindUnknown, errors.New(msg))
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Original
}

// Is matches any AuthError of the same kind
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// RichError converts the error into a go-errors value with a text code
// and HTTP status, for transport layers.
func (e *AuthError) RichError() *goerrors.Error {
	if e == nil {
		return nil
	}

	var rich *goerrors.Error
	switch e.Kind {
	case KindAlreadyRegistered:
		rich = goerrors.New(e.Message, goerrors.CategoryConflict).WithCode(goerrors.CodeConflict)
	case KindInvalidCredentials:
		rich = goerrors.New(e.Message, goerrors.CategoryAuth).WithCode(goerrors.CodeUnauthorized)
	case KindEmailNotConfirmed:
		rich = goerrors.New(e.Message, goerrors.CategoryAuthz).WithCode(goerrors.CodeForbidden)
	case KindRateLimited:
		rich = goerrors.New(e.Message, goerrors.CategoryRateLimit).WithCode(http.StatusTooManyRequests)
	case KindWeakPassword, KindInvalidEmailFormat:
		rich = goerrors.New(e.Message, goerrors.CategoryValidation).WithCode(goerrors.CodeBadRequest)
	case KindNetworkError:
		rich = goerrors.New(e.Message, goerrors.CategoryOperation).WithCode(http.StatusServiceUnavailable)
	default:
		rich = goerrors.New(e.Message, goerrors.CategoryInternal).WithCode(goerrors.CodeInternal)
	}

	return rich.WithTextCode(string(e.Kind))
}

type classificationRule struct {
	kind    AuthErrorKind
	needles []string
}

// classificationTable maps known backend message fragments to a kind.
// Rules are evaluated in order, needles are matched case-insensitively.
var classificationTable = []classificationRule{
	{KindAlreadyRegistered, []string{"already registered", "already exists", "user already"}},
	{KindInvalidCredentials, []string{"invalid login credentials", "invalid credentials", "invalid password", "wrong password"}},
	{KindEmailNotConfirmed, []string{"email not confirmed", "email not verified"}},
	{KindRateLimited, []string{"rate limit", "too many requests", "you can only request this"}},
	{KindWeakPassword, []string{"password should be", "weak password", "password is too weak", "password must"}},
	{KindInvalidEmailFormat, []string{"invalid email", "unable to validate email", "email address is invalid"}},
	{KindNetworkError, []string{"network", "failed to fetch", "fetch failed", "connection refused", "no such host", "timeout"}},
}

// ClassifyMessage maps a raw backend message to an AuthError. Unmatched
// messages classify as KindUnknown with the original text preserved.
func ClassifyMessage(msg string) *AuthError {
	lower := strings.ToLower(msg)
	for _, rule := range classificationTable {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return newAuthError(rule.kind, errors.New(msg))
			}
		}
	}
	return NewUnknownError(msg)
}

// ClassifyError maps any error to an AuthError. Already classified errors
// are returned as is.
func ClassifyError(err error) *AuthError {
	if err == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newAuthError(KindNetworkError, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return newAuthError(KindNetworkError, err)
	}

	classified := ClassifyMessage(err.Error())
	classified.Original = err
	return classified
}

// IsAuthErrorKind reports whether err classifies as kind
func IsAuthErrorKind(err error, kind AuthErrorKind) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.Kind == kind
}
