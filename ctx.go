package authflow

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var stateCtxKey = &contextKey{"auth_state"}

type contextKey struct {
	name string
}

// DefaultStateLocalsKey is the router locals key StateFromRouter reads
const DefaultStateLocalsKey = "auth_state"

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithStateContext sets the State in the given context
func WithStateContext(r context.Context, st State) context.Context {
	return context.WithValue(r, stateCtxKey, st)
}

// StateFromContext extracts the State from the standard context. A bare
// user stored with WithContext is promoted to a settled State.
func StateFromContext(ctx context.Context) (State, bool) {
	if st, ok := ctx.Value(stateCtxKey).(State); ok {
		return st, true
	}
	if user, ok := FromContext(ctx); ok {
		return State{User: user}, true
	}
	return State{}, false
}

// StateFromRouter extracts the State from the router locals, falling back
// to the request context
func StateFromRouter(ctx router.Context, key string) (State, bool) {
	if key == "" {
		key = DefaultStateLocalsKey
	}

	switch raw := ctx.Locals(key).(type) {
	case State:
		return raw, true
	case *State:
		if raw != nil {
			return *raw, true
		}
	case *User:
		if raw != nil {
			return State{User: raw}, true
		}
	}

	return StateFromContext(ctx.Context())
}
