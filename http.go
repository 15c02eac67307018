package authflow

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// StateResolver produces the auth state for a request
type StateResolver interface {
	ResolveState(c router.Context) (State, error)
}

// StateResolverFunc adapts a function to StateResolver
type StateResolverFunc func(c router.Context) (State, error)

// ResolveState implements StateResolver
func (f StateResolverFunc) ResolveState(c router.Context) (State, error) {
	return f(c)
}

// StoreResolver resolves every request to the store snapshot, for a
// single user process such as a desktop shell or an SSR dev server
func StoreResolver(store *Store) StateResolver {
	return StateResolverFunc(func(router.Context) (State, error) {
		return store.State(), nil
	})
}

// LocalsResolver reads the state an earlier middleware placed in the
// router locals under key. A request without state is unauthenticated.
func LocalsResolver(key string) StateResolver {
	return StateResolverFunc(func(c router.Context) (State, error) {
		st, _ := StateFromRouter(c, key)
		return st, nil
	})
}

// MiddlewareOption customizes the HTTP middlewares
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	logger     Logger
	retryAfter int
	onError    func(c router.Context, err error) error
	activity   ActivitySink
}

// WithMiddlewareActivitySink records an ActivityEventRedirect for every
// onboarding redirect
func WithMiddlewareActivitySink(sink ActivitySink) MiddlewareOption {
	return func(m *middlewareConfig) {
		m.activity = sink
	}
}

// WithMiddlewareLogger overrides the logger
func WithMiddlewareLogger(l Logger) MiddlewareOption {
	return func(m *middlewareConfig) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRetryAfter sets the Retry-After seconds sent while the state loads
func WithRetryAfter(seconds int) MiddlewareOption {
	return func(m *middlewareConfig) {
		if seconds > 0 {
			m.retryAfter = seconds
		}
	}
}

// WithMiddlewareErrorHandler handles resolver failures
func WithMiddlewareErrorHandler(fn func(c router.Context, err error) error) MiddlewareOption {
	return func(m *middlewareConfig) {
		if fn != nil {
			m.onError = fn
		}
	}
}

func newMiddlewareConfig(opts []MiddlewareOption) *middlewareConfig {
	m := &middlewareConfig{
		logger:     defLogger{},
		retryAfter: 1,
	}
	m.onError = m.defaultErrHandler
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// OnboardingMiddleware applies Guard.Decide to server routes so they agree
// with client side navigation
func OnboardingMiddleware(guard *Guard, resolver StateResolver, opts ...MiddlewareOption) router.MiddlewareFunc {
	cfg := newMiddlewareConfig(opts)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			st, err := resolver.ResolveState(c)
			if err != nil {
				return cfg.onError(c, err)
			}

			d := guard.Decide(c.Path(), st)
			switch d.Action {
			case ActionWait:
				c.SetHeader("Retry-After", strconv.Itoa(cfg.retryAfter))
				return c.JSON(http.StatusServiceUnavailable, map[string]any{
					"status": "loading",
				})
			case ActionRedirect:
				cfg.logger.Info("onboarding redirect %s -> %s rule=%s", c.Path(), d.Target, d.Rule)
				cfg.recordRedirect(c, st, d)
				return c.Redirect(d.Target, redirectStatus(c))
			}

			return next(c)
		}
	}
}

// RequireVerifiedEmail rejects action endpoints for unverified sessions.
// label names the action and is echoed in the response body.
func RequireVerifiedEmail(resolver StateResolver, label string, opts ...MiddlewareOption) router.MiddlewareFunc {
	cfg := newMiddlewareConfig(opts)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			st, err := resolver.ResolveState(c)
			if err != nil {
				return cfg.onError(c, err)
			}

			if st.User != nil && st.User.EmailVerified {
				return next(c)
			}

			richErr := ErrEmailNotConfirmed.RichError()
			if st.User == nil {
				richErr = errors.New(ErrNoSession.Message, errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized).
					WithTextCode("NO_SESSION")
			}

			cfg.logger.Info("action %q blocked: %s", label, richErr.TextCode)

			return c.JSON(richErr.Code, map[string]any{
				"error": map[string]any{
					"message":   richErr.Message,
					"text_code": richErr.TextCode,
					"category":  richErr.Category,
					"action":    label,
				},
			})
		}
	}
}

func redirectStatus(c router.Context) int {
	if c.Method() == http.MethodGet {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

func (m *middlewareConfig) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "Failed to resolve auth state").
			WithCode(errors.CodeInternal)
	}

	m.logger.Error("auth state resolution failed: %s details=%s", richErr.Message, print.MaybePrettyJSON(richErr.Metadata))

	return c.JSON(richErr.Code, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}

func (m *middlewareConfig) recordRedirect(c router.Context, st State, d Decision) {
	if m.activity == nil {
		return
	}
	event := redirectActivity(st, c.Path(), d)
	event.OccurredAt = time.Now()
	event.Metadata["method"] = c.Method()
	if err := m.activity.Record(c.Context(), event); err != nil {
		m.logger.Warn("activity sink error: %v", err)
	}
}
