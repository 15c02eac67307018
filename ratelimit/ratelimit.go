// Package ratelimit throttles repeated requests per key, such as
// verification email resends per address.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Limiter reports whether one more request identified by key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LimiterFunc adapts a function to Limiter
type LimiterFunc func(ctx context.Context, key string) (bool, error)

// Allow implements Limiter
func (f LimiterFunc) Allow(ctx context.Context, key string) (bool, error) {
	return f(ctx, key)
}

// Unlimited allows every request
var Unlimited Limiter = LimiterFunc(func(context.Context, string) (bool, error) {
	return true, nil
})

// Rule is a limit of Limit requests per Window
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) valid() bool {
	return r.Limit > 0 && r.Window > 0
}

// KeyEmail builds the normalized key for an email address
func KeyEmail(email string) string {
	e := strings.TrimSpace(strings.ToLower(email))
	if e == "" {
		return ""
	}
	return "email:" + e
}
