package backend_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/backend"
	"github.com/goliatone/go-authflow/mailer"
	"github.com/goliatone/go-authflow/repository"
)

const testPassword = "Abcdef12"

type harness struct {
	svc     *backend.Service
	repo    repository.Manager
	capture *mailer.Capture
}

func newHarness(t *testing.T, opts ...backend.Option) *harness {
	t.Helper()

	db, err := repository.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))

	repo := repository.NewManager(db)
	capture := mailer.NewCapture()

	cfg := backend.DefaultConfig()
	cfg.SigningKey = "test-signing-key"
	cfg.BcryptCost = bcrypt.MinCost

	svc, err := backend.NewService(repo, cfg, append([]backend.Option{backend.WithMailer(capture)}, opts...)...)
	require.NoError(t, err)

	return &harness{svc: svc, repo: repo, capture: capture}
}

func (h *harness) client(t *testing.T) *backend.Client {
	t.Helper()
	c := h.svc.NewClient()
	t.Cleanup(c.Close)
	return c
}

// lastToken returns the verification token mailed to email
func (h *harness) lastToken(t *testing.T, email string) string {
	t.Helper()
	msg, ok := h.capture.Last(email)
	require.True(t, ok, "no mail sent to %s", email)
	require.NotEmpty(t, msg.Tags["token"])
	return msg.Tags["token"]
}

func nextEvent(t *testing.T, ch <-chan authflow.SessionEvent) authflow.SessionEvent {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
	}
	return authflow.SessionEvent{}
}

func noEvent(t *testing.T, ch <-chan authflow.SessionEvent) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected session event %s", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

type routeLog struct {
	mu     sync.Mutex
	routes []string
}

func (r *routeLog) Navigate(route string) {
	r.mu.Lock()
	r.routes = append(r.routes, route)
	r.mu.Unlock()
}

func (r *routeLog) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}
