package authflow_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGuardDecideTable(t *testing.T) {
	g := authflow.NewGuard()

	tests := []struct {
		name   string
		route  string
		state  authflow.State
		action authflow.Action
		target string
		rule   string
	}{
		{
			name:   "loading waits on any route",
			route:  "/interests",
			state:  authflow.State{IsLoading: true, User: verifiedUser(authflow.StepComplete)},
			action: authflow.ActionWait,
			rule:   authflow.RuleLoading,
		},
		{
			name:   "outside onboarding is allowed",
			route:  "/home",
			state:  settled(nil),
			action: authflow.ActionAllow,
			rule:   authflow.RuleOutsideOnboarding,
		},
		{
			name:   "verify email page is outside onboarding",
			route:  "/verify-email",
			state:  settled(unverifiedUser()),
			action: authflow.ActionAllow,
			rule:   authflow.RuleOutsideOnboarding,
		},
		{
			name:   "complete user on a step goes home",
			route:  "/interests",
			state:  settled(verifiedUser(authflow.StepComplete)),
			action: authflow.ActionRedirect,
			target: "/home",
			rule:   authflow.RuleOnboardingComplete,
		},
		{
			name:   "complete user on entry goes home",
			route:  "/onboarding",
			state:  settled(verifiedUser(authflow.StepComplete)),
			action: authflow.ActionRedirect,
			target: "/home",
			rule:   authflow.RuleOnboardingComplete,
		},
		{
			name:   "complete user may see the complete page",
			route:  "/complete",
			state:  settled(verifiedUser(authflow.StepComplete)),
			action: authflow.ActionAllow,
			rule:   authflow.RuleAllowed,
		},
		{
			name:   "no session on a step goes to entry",
			route:  "/subcategories",
			state:  settled(nil),
			action: authflow.ActionRedirect,
			target: "/onboarding",
			rule:   authflow.RuleNoSession,
		},
		{
			name:   "no session on the complete page goes to entry",
			route:  "/complete",
			state:  settled(nil),
			action: authflow.ActionRedirect,
			target: "/onboarding",
			rule:   authflow.RuleNoSession,
		},
		{
			name:   "no session on login is allowed",
			route:  "/login",
			state:  settled(nil),
			action: authflow.ActionAllow,
			rule:   authflow.RuleAllowed,
		},
		{
			name:   "no session on register is allowed",
			route:  "/register",
			state:  settled(nil),
			action: authflow.ActionAllow,
			rule:   authflow.RuleAllowed,
		},
		{
			name:   "unverified on interests goes to verify",
			route:  "/interests",
			state:  settled(unverifiedUser()),
			action: authflow.ActionRedirect,
			target: "/verify-email",
			rule:   authflow.RuleEmailUnverified,
		},
		{
			name:   "subcategories without interests goes to interests",
			route:  "/subcategories",
			state:  settled(verifiedUser(authflow.StepInterests)),
			action: authflow.ActionRedirect,
			target: "/interests",
			rule:   authflow.RuleStepSkipped,
		},
		{
			name:   "deal breakers without sub interests goes to subcategories",
			route:  "/deal-breakers",
			state:  settled(verifiedUser(authflow.StepSubcategories)),
			action: authflow.ActionRedirect,
			target: "/subcategories",
			rule:   authflow.RuleStepSkipped,
		},
		{
			name:   "verified on interests is allowed",
			route:  "/interests",
			state:  settled(verifiedUser(authflow.StepInterests)),
			action: authflow.ActionAllow,
			rule:   authflow.RuleAllowed,
		},
		{
			name:   "session on entry is allowed",
			route:  "/onboarding",
			state:  settled(verifiedUser(authflow.StepSubcategories)),
			action: authflow.ActionAllow,
			rule:   authflow.RuleAllowed,
		},
		{
			name:   "query and trailing slash are ignored",
			route:  "/subcategories/?from=email#top",
			state:  settled(verifiedUser(authflow.StepInterests)),
			action: authflow.ActionRedirect,
			target: "/interests",
			rule:   authflow.RuleStepSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Decide(tt.route, tt.state)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.target, d.Target)
			assert.Equal(t, tt.rule, d.Rule)
		})
	}
}

func TestGuardNoSkipping(t *testing.T) {
	g := authflow.NewGuard()
	r := g.Registry()

	progress := []authflow.OnboardingStep{
		authflow.StepInterests,
		authflow.StepSubcategories,
		authflow.StepDealBreakers,
	}

	for _, at := range progress {
		user := verifiedUser(at)
		for _, step := range r.Steps() {
			d := g.Decide(step.Path, settled(user))

			missing, blocked := r.EarliestUnsatisfiedBefore(step.ID, &user.Session, user.Profile)
			if blocked {
				require.True(t, d.IsRedirect(), "%s at %s", step.ID, at)
				assert.Equal(t, missing.Path, d.Target, "%s at %s", step.ID, at)
				continue
			}
			assert.Equal(t, authflow.ActionAllow, d.Action, "%s at %s", step.ID, at)
		}
	}
}

func TestGuardDecideIsIdempotent(t *testing.T) {
	g := authflow.NewGuard()
	states := []authflow.State{
		{IsLoading: true},
		settled(nil),
		settled(unverifiedUser()),
		settled(verifiedUser(authflow.StepSubcategories)),
		settled(verifiedUser(authflow.StepComplete)),
	}

	for _, st := range states {
		for _, route := range []string{"/onboarding", "/interests", "/subcategories", "/deal-breakers", "/complete", "/home"} {
			assert.Equal(t, g.Decide(route, st), g.Decide(route, st), route)
		}
	}
}

func TestGuardVerificationUnlocksInterests(t *testing.T) {
	g := authflow.NewGuard()
	user := unverifiedUser()

	d := g.Decide("/interests", settled(user))
	require.Equal(t, "/verify-email", d.Target)

	user.EmailVerified = true
	d = g.Decide("/interests", settled(user))
	assert.Equal(t, authflow.ActionAllow, d.Action)
}

func TestGuardCustomRoutes(t *testing.T) {
	g := authflow.NewGuard(authflow.WithGuardConfig(authflow.RoutesConfig{
		Home:  "/discover",
		Entry: "/welcome",
	}))

	assert.True(t, g.IsOnboardingRoute("/welcome"))
	assert.False(t, g.IsOnboardingRoute("/onboarding"))

	d := g.Decide("/interests", settled(nil))
	assert.Equal(t, "/welcome", d.Target)

	d = g.Decide("/interests", settled(verifiedUser(authflow.StepComplete)))
	assert.Equal(t, "/discover", d.Target)
}

func TestDeriveState(t *testing.T) {
	r := authflow.DefaultStepRegistry()

	assert.IsType(t, authflow.Loading{}, authflow.DeriveState(authflow.State{IsLoading: true}, r))
	assert.IsType(t, authflow.Unauthenticated{}, authflow.DeriveState(settled(nil), r))
	assert.IsType(t, authflow.Unverified{}, authflow.DeriveState(settled(unverifiedUser()), r))
	assert.IsType(t, authflow.Complete{}, authflow.DeriveState(settled(verifiedUser(authflow.StepComplete)), r))

	st := authflow.DeriveState(settled(verifiedUser(authflow.StepSubcategories)), r)
	incomplete, ok := st.(authflow.OnboardingIncomplete)
	require.True(t, ok)
	assert.Equal(t, authflow.StepSubcategories, incomplete.Step.ID)
	assert.Equal(t, "onboarding_incomplete", incomplete.Name())
}

func TestNormalizeRoute(t *testing.T) {
	assert.Equal(t, "/", authflow.NormalizeRoute(""))
	assert.Equal(t, "/", authflow.NormalizeRoute("/"))
	assert.Equal(t, "/interests", authflow.NormalizeRoute("/interests///"))
	assert.Equal(t, "/interests", authflow.NormalizeRoute("/interests?a=1"))
}

func newSettledStore(t *testing.T, user *authflow.User, opts ...authflow.StoreOption) (*authflow.Store, *MockBackend) {
	t.Helper()

	backend := &MockBackend{}
	if user == nil {
		backend.On("CurrentSession", mock.Anything).Return(nil, nil)
	} else {
		session := user.Session
		backend.On("CurrentSession", mock.Anything).Return(&session, nil)
		backend.On("GetProfile", mock.Anything, user.ID).Return(user.Profile.Clone(), nil)
	}
	events := make(chan authflow.SessionEvent)
	backend.On("Subscribe").Return((<-chan authflow.SessionEvent)(events), func() {})

	opts = append([]authflow.StoreOption{authflow.WithStoreLogger(&captureLogger{})}, opts...)
	store := authflow.NewStore(authflow.NewSessionProvider(backend, authflow.WithSessionProviderLogger(&captureLogger{})), opts...)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(store.Close)

	return store, backend
}

func TestRouteWatcherFollowsRedirectChain(t *testing.T) {
	store, _ := newSettledStore(t, unverifiedUser())
	nav := &navRecorder{}

	w := authflow.NewGuard().Watch(store, nav)
	defer w.Close()

	// subcategories -> interests -> verify-email
	d := w.SetRoute("/subcategories")
	assert.Equal(t, authflow.ActionRedirect, d.Action)
	assert.Equal(t, "/verify-email", d.Target)
	assert.Equal(t, authflow.RuleStepSkipped, d.Rule)
	assert.Equal(t, "/verify-email", w.Route())
	assert.Equal(t, []string{"/verify-email"}, nav.Routes())
}

func TestRouteWatcherRecordsRedirect(t *testing.T) {
	rec := &activityRecorder{}
	store, _ := newSettledStore(t, unverifiedUser(), authflow.WithStoreActivitySink(rec))

	w := authflow.NewGuard().Watch(store, &navRecorder{})
	defer w.Close()

	w.SetRoute("/subcategories")

	var redirects []authflow.ActivityEvent
	for _, e := range rec.Events() {
		if e.EventType == authflow.ActivityEventRedirect {
			redirects = append(redirects, e)
		}
	}
	require.Len(t, redirects, 1)
	assert.Equal(t, "/verify-email", redirects[0].Redirect)
	assert.Equal(t, testUserID, redirects[0].UserID)
	assert.Equal(t, "/subcategories", redirects[0].Metadata["from"])
	assert.Equal(t, authflow.RuleStepSkipped, redirects[0].Metadata["rule"])
	assert.False(t, redirects[0].OccurredAt.IsZero())
}

func TestRouteWatcherWaitsWhileLoading(t *testing.T) {
	backend := &MockBackend{}
	store := authflow.NewStore(authflow.NewSessionProvider(backend), authflow.WithStoreLogger(&captureLogger{}))
	nav := &navRecorder{}

	w := authflow.NewGuard().Watch(store, nav)
	defer w.Close()

	d := w.SetRoute("/interests")
	assert.Equal(t, authflow.ActionWait, d.Action)
	assert.Empty(t, nav.Routes())
	backend.AssertNotCalled(t, "CurrentSession", mock.Anything)
}

func TestRouteWatcherReactsToStoreTicks(t *testing.T) {
	store, backend := newSettledStore(t, verifiedUser(authflow.StepInterests))
	nav := &navRecorder{}

	w := authflow.NewGuard().Watch(store, nav)
	defer w.Close()

	d := w.SetRoute("/interests")
	require.Equal(t, authflow.ActionAllow, d.Action)

	backend.On("SignOut", mock.Anything).Return(nil)
	require.True(t, store.Logout(context.Background()))

	assert.Contains(t, nav.Routes(), "/onboarding")
	assert.Equal(t, "/onboarding", w.Route())
}
