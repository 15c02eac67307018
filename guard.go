package authflow

import (
	"context"
	"strings"
	"sync"
)

// AuthState is the tagged union the navigation guard reasons about
type AuthState interface {
	Name() string
	authState()
}

// Loading means the store has not settled yet, no conclusive decision can be made
type Loading struct{}

// Unauthenticated means there is no session
type Unauthenticated struct{}

// Unverified means a session exists but its email is not verified
type Unverified struct {
	User *User
}

// OnboardingIncomplete means the session is verified and Step is the
// earliest step still to be completed
type OnboardingIncomplete struct {
	User *User
	Step Step
}

// Complete means the onboarding reached the terminal step
type Complete struct {
	User *User
}

func (Loading) Name() string              { return "loading" }
func (Unauthenticated) Name() string      { return "unauthenticated" }
func (Unverified) Name() string           { return "unverified" }
func (OnboardingIncomplete) Name() string { return "onboarding_incomplete" }
func (Complete) Name() string             { return "complete" }

func (Loading) authState()              {}
func (Unauthenticated) authState()      {}
func (Unverified) authState()           {}
func (OnboardingIncomplete) authState() {}
func (Complete) authState()             {}

// DeriveState maps a store snapshot to an AuthState
func DeriveState(st State, registry *StepRegistry) AuthState {
	switch {
	case st.IsLoading:
		return Loading{}
	case st.User == nil:
		return Unauthenticated{}
	case st.User.Profile.OnboardingComplete():
		return Complete{User: st.User}
	case !st.User.EmailVerified:
		return Unverified{User: st.User}
	}

	step, ok := registry.FirstIncomplete(&st.User.Session, st.User.Profile)
	if !ok {
		step = registry.Terminal()
	}
	return OnboardingIncomplete{User: st.User, Step: step}
}

// Action is what the guard wants done with a navigation
type Action string

const (
	// ActionWait renders nothing conclusive until the state settles
	ActionWait Action = "wait"
	// ActionAllow renders the requested route
	ActionAllow Action = "allow"
	// ActionRedirect navigates to Decision.Target
	ActionRedirect Action = "redirect"
)

// Rule names recorded on decisions
const (
	RuleLoading            = "loading"
	RuleOutsideOnboarding  = "outside_onboarding"
	RuleOnboardingComplete = "onboarding_complete"
	RuleNoSession          = "no_session"
	RuleEmailUnverified    = "email_unverified"
	RuleStepSkipped        = "step_skipped"
	RuleAllowed            = "allowed"
)

// Decision is the outcome of Guard.Decide
type Decision struct {
	Action Action
	Target string
	Rule   string
}

// IsRedirect reports whether the decision navigates away
func (d Decision) IsRedirect() bool {
	return d.Action == ActionRedirect
}

// GuardOption customizes a Guard
type GuardOption func(*Guard)

// WithGuardRegistry overrides the step registry
func WithGuardRegistry(r *StepRegistry) GuardOption {
	return func(g *Guard) {
		if r != nil {
			g.registry = r
		}
	}
}

// WithGuardConfig overrides the routes configuration
func WithGuardConfig(cfg Config) GuardOption {
	return func(g *Guard) {
		if cfg != nil {
			g.cfg = cfg
		}
	}
}

// Guard enforces route reachability over the onboarding route set.
// It holds no mutable state, Decide is safe for concurrent use.
type Guard struct {
	registry *StepRegistry
	cfg      Config
	public   map[string]struct{}
	routes   map[string]struct{}
}

// NewGuard builds a guard over the default registry and routes
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		registry: DefaultStepRegistry(),
		cfg:      DefaultRoutes(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	g.public = map[string]struct{}{
		g.cfg.GetEntryRoute():    {},
		g.cfg.GetRegisterRoute(): {},
		g.cfg.GetLoginRoute():    {},
	}

	g.routes = make(map[string]struct{}, len(g.public)+g.registry.Len())
	for route := range g.public {
		g.routes[route] = struct{}{}
	}
	for _, p := range g.registry.Paths() {
		g.routes[p] = struct{}{}
	}

	return g
}

// Registry returns the step registry the guard evaluates against
func (g *Guard) Registry() *StepRegistry {
	return g.registry
}

// Config returns the guard routes
func (g *Guard) Config() Config {
	return g.cfg
}

// IsOnboardingRoute reports whether the guard applies to route
func (g *Guard) IsOnboardingRoute(route string) bool {
	_, ok := g.routes[NormalizeRoute(route)]
	return ok
}

// Decide is a pure total function of (route, state). Rules are evaluated
// top to bottom and the first match wins; later rules rely on the
// invariants established by earlier ones.
func (g *Guard) Decide(route string, st State) Decision {
	route = NormalizeRoute(route)

	if st.IsLoading {
		return Decision{Action: ActionWait, Rule: RuleLoading}
	}

	if _, ok := g.routes[route]; !ok {
		return Decision{Action: ActionAllow, Rule: RuleOutsideOnboarding}
	}

	terminal := g.registry.Terminal()
	user := st.User

	if user != nil && user.Profile.OnboardingComplete() && route != terminal.Path {
		return redirect(g.cfg.GetHomeRoute(), RuleOnboardingComplete)
	}

	if user == nil {
		if _, ok := g.public[route]; !ok {
			return redirect(g.cfg.GetEntryRoute(), RuleNoSession)
		}
		return Decision{Action: ActionAllow, Rule: RuleAllowed}
	}

	step, ok := g.registry.StepByPath(route)
	if !ok {
		return Decision{Action: ActionAllow, Rule: RuleAllowed}
	}

	if !user.EmailVerified && !step.Requires(&user.Session, user.Profile) {
		return redirect(g.cfg.GetVerifyEmailRoute(), RuleEmailUnverified)
	}

	if missing, ok := g.registry.EarliestUnsatisfiedBefore(step.ID, &user.Session, user.Profile); ok {
		return redirect(missing.Path, RuleStepSkipped)
	}

	return Decision{Action: ActionAllow, Rule: RuleAllowed}
}

func redirect(target, rule string) Decision {
	return Decision{Action: ActionRedirect, Target: target, Rule: rule}
}

// NormalizeRoute drops query, fragment, and trailing slashes
func NormalizeRoute(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	route = strings.TrimSpace(route)
	for len(route) > 1 && strings.HasSuffix(route, "/") {
		route = strings.TrimSuffix(route, "/")
	}
	if route == "" {
		return "/"
	}
	return route
}

// maxRedirectHops bounds redirect chains followed by a RouteWatcher
const maxRedirectHops = 8

// RouteWatcher re-evaluates the guard on every route change and every
// store tick, issuing redirects through the Navigator.
type RouteWatcher struct {
	mu     sync.Mutex
	guard  *Guard
	store  *Store
	nav    Navigator
	route  string
	last   Decision
	cancel func()
}

// Watch binds the guard to a store. Close releases the subscription.
func (g *Guard) Watch(store *Store, nav Navigator) *RouteWatcher {
	if nav == nil {
		nav = noopNavigator{}
	}
	w := &RouteWatcher{
		guard: g,
		store: store,
		nav:   nav,
		last:  Decision{Action: ActionWait, Rule: RuleLoading},
	}
	w.cancel = store.Subscribe(func(st State) {
		w.evaluate(st)
	})
	return w
}

// SetRoute records a route change and evaluates it
func (w *RouteWatcher) SetRoute(route string) Decision {
	w.mu.Lock()
	w.route = NormalizeRoute(route)
	w.mu.Unlock()
	return w.evaluate(w.store.State())
}

// Route returns the route the watcher last settled on
func (w *RouteWatcher) Route() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.route
}

// Decision returns the last decision
func (w *RouteWatcher) Decision() Decision {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Close stops reacting to store ticks
func (w *RouteWatcher) Close() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *RouteWatcher) evaluate(st State) Decision {
	w.mu.Lock()
	route := w.route
	w.mu.Unlock()

	if route == "" {
		return Decision{Action: ActionWait, Rule: RuleLoading}
	}

	from := route
	first := w.guard.Decide(route, st)
	d := first
	hops := 0
	for d.IsRedirect() && d.Target != route && hops < maxRedirectHops {
		route = d.Target
		hops++
		d = w.guard.Decide(route, st)
	}

	if hops > 0 {
		// report the chain as a single redirect to where it settled
		first.Target = route
	}

	w.mu.Lock()
	w.route = route
	w.last = first
	w.mu.Unlock()

	if hops > 0 {
		w.store.record(context.Background(), redirectActivity(st, from, first))
		w.nav.Navigate(route)
	}
	return first
}

// redirectActivity describes a guard redirect away from route
func redirectActivity(st State, route string, d Decision) ActivityEvent {
	event := ActivityEvent{
		EventType: ActivityEventRedirect,
		Redirect:  d.Target,
		Metadata: map[string]any{
			"from": route,
			"rule": d.Rule,
		},
	}
	if st.User != nil {
		event.UserID = st.User.ID
		event.Email = st.User.Email
	}
	return event
}
