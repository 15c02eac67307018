package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-print"
)

// ErrNoSession is returned by actions that need an authenticated user
var ErrNoSession = &AuthError{Kind: KindUnknown, Message: "You need to sign in first."}

// ErrStoreStarted is returned when Start is called twice
var ErrStoreStarted = errors.New("auth store already started")

// State is a snapshot of the auth store
type State struct {
	User      *User
	IsLoading bool
	Error     *AuthError
}

// StoreOption customizes a Store
type StoreOption func(*Store)

// WithStoreNavigator sets the Navigator used for redirects
func WithStoreNavigator(nav Navigator) StoreOption {
	return func(s *Store) {
		if nav != nil {
			s.nav = nav
		}
	}
}

// WithStorePendingEmailStore sets the durable pending email slot
func WithStorePendingEmailStore(p PendingEmailStore) StoreOption {
	return func(s *Store) {
		if p != nil {
			s.pending = p
		}
	}
}

// WithStoreRegistry overrides the onboarding step registry
func WithStoreRegistry(r *StepRegistry) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithStoreConfig overrides the routes configuration
func WithStoreConfig(cfg Config) StoreOption {
	return func(s *Store) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStoreLogger overrides the logger
func WithStoreLogger(l Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreActivitySink sets the ActivitySink used to publish auth events
func WithStoreActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithStoreClock injects a custom clock (useful for tests)
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Store is the process wide auth state container. It is the only writer
// of the shared user record; guards and pages read snapshots and request
// redirects. Writes are last write wins, every backend read overwrites the
// local record.
type Store struct {
	mu    sync.RWMutex
	state State

	provider *SessionProvider
	registry *StepRegistry
	cfg      Config
	nav      Navigator
	pending  PendingEmailStore
	logger   Logger
	activity ActivitySink
	now      func() time.Time

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int

	lifeMu  sync.Mutex
	started bool
	done    chan struct{}
	release func()
	wg      sync.WaitGroup
}

// NewStore builds a store over provider. The store starts in the loading
// state until Start completes the initialization protocol.
func NewStore(provider *SessionProvider, opts ...StoreOption) *Store {
	s := &Store{
		state:    State{IsLoading: true},
		provider: provider,
		registry: DefaultStepRegistry(),
		cfg:      DefaultRoutes(),
		nav:      noopNavigator{},
		pending:  &memoryPendingEmailStore{},
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
		subs:     map[int]func(State){},
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start runs the initialization protocol once: load the current user,
// settle the loading flag, then process backend change events in delivery
// order until ctx is done or Close is called. Events are neither reordered
// nor debounced.
func (s *Store) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	if s.started {
		s.lifeMu.Unlock()
		return ErrStoreStarted
	}
	s.started = true
	s.lifeMu.Unlock()

	s.initialize(ctx)

	events, release := s.provider.Subscribe()
	s.lifeMu.Lock()
	s.release = release
	s.lifeMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				s.HandleEvent(ctx, evt)
			}
		}
	}()

	return nil
}

// Close stops event processing and releases the backend subscription
func (s *Store) Close() {
	s.lifeMu.Lock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	release := s.release
	s.release = nil
	s.lifeMu.Unlock()

	if release != nil {
		release()
	}
	s.wg.Wait()
}

func (s *Store) initialize(ctx context.Context) {
	s.update(func(st *State) {
		st.IsLoading = true
	})

	user, err := s.provider.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("initial session lookup failed: %v", err)
	}

	s.update(func(st *State) {
		st.User = user
		st.Error = ClassifyError(err)
		st.IsLoading = false
	})
}

// HandleEvent applies a single change event. The email confirmed fast path
// refetches before any generic handling so a just verified user does not
// linger as unverified.
func (s *Store) HandleEvent(ctx context.Context, evt SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session event %s id=%s panicked: %v", evt.Kind, evt.ID, r)
			s.setError(NewUnknownError(fmt.Sprint(r)))
		}
		s.setLoading(false)
	}()

	s.logger.Debug("session event %s id=%s", evt.Kind, evt.ID)

	switch {
	case evt.ConfirmsEmail() && s.hasUser():
		s.refetchUser(ctx)
		s.clearPendingEmail(ctx)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventEmailConfirmed,
			UserID:    evt.Session.ID,
			Email:     evt.Session.Email,
		})
	case evt.CarriesSession():
		s.refetchUser(ctx)
		if evt.ConfirmsEmail() {
			s.clearPendingEmail(ctx)
		}
	default:
		s.update(func(st *State) {
			st.User = nil
		})
	}
}

// State returns a snapshot of the store
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		User:      s.state.User.Clone(),
		IsLoading: s.state.IsLoading,
		Error:     s.state.Error,
	}
}

// User returns a copy of the current user, or nil
func (s *Store) User() *User {
	return s.State().User
}

// Subscribe registers fn to be called with a snapshot after every state
// change. Listeners run on the goroutine that changed the state.
func (s *Store) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Login signs the user in and redirects: home when onboarding is complete,
// the verification page when the email is unverified, otherwise the first
// incomplete step. Failures populate State.Error and return false.
func (s *Store) Login(ctx context.Context, email, password string) (ok bool) {
	s.beginAction()
	defer s.endAction("login", &ok)

	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		authErr := ClassifyError(err)
		s.setError(authErr)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Email:     NormalizeEmail(email),
			ErrorKind: authErr.Kind,
		})
		return false
	}

	s.update(func(st *State) {
		st.User = user
	})

	target := s.LoginRedirect(user)
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID,
		Email:     user.Email,
		Redirect:  target,
	})
	s.nav.Navigate(target)
	return true
}

// LoginRedirect resolves where a freshly signed in user lands
func (s *Store) LoginRedirect(user *User) string {
	switch {
	case user == nil:
		return s.cfg.GetEntryRoute()
	case user.Profile.OnboardingComplete():
		return s.cfg.GetHomeRoute()
	case !user.EmailVerified:
		return s.cfg.GetVerifyEmailRoute()
	}

	step, ok := s.registry.FirstIncomplete(&user.Session, user.Profile)
	if !ok {
		step = s.registry.Terminal()
	}
	return step.Path
}

// Register creates the account, persists the pending email for the
// verification page, and always redirects to the verification page.
func (s *Store) Register(ctx context.Context, email, password string) (ok bool) {
	s.beginAction()
	defer s.endAction("register", &ok)

	session, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		authErr := ClassifyError(err)
		s.setError(authErr)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventRegisterFailure,
			Email:     NormalizeEmail(email),
			ErrorKind: authErr.Kind,
		})
		return false
	}

	s.update(func(st *State) {
		st.User = &User{Session: *session}
	})

	if err := s.pending.SavePendingEmail(ctx, session.Email); err != nil {
		s.logger.Error("failed to persist pending email: %v", err)
	}

	target := s.cfg.GetVerifyEmailRoute()
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventRegisterSuccess,
		UserID:    session.ID,
		Email:     session.Email,
		Redirect:  target,
	})
	s.nav.Navigate(target)
	return true
}

// Logout clears the session and redirects to the onboarding entry. On
// failure the user is left untouched.
func (s *Store) Logout(ctx context.Context) (ok bool) {
	s.beginAction()
	defer s.endAction("logout", &ok)

	var userID string
	if u := s.User(); u != nil {
		userID = u.ID
	}

	if err := s.provider.SignOut(ctx); err != nil {
		s.setError(ClassifyError(err))
		return false
	}

	s.update(func(st *State) {
		st.User = nil
	})

	target := s.cfg.GetEntryRoute()
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    userID,
		Redirect:  target,
	})
	s.nav.Navigate(target)
	return true
}

// ResendVerificationEmail sends the verification link again. An empty
// email falls back to the pending registration email, then the current
// user. Rate limiting surfaces as an error, it is never retried.
func (s *Store) ResendVerificationEmail(ctx context.Context, email string) (ok bool) {
	s.beginAction()
	defer s.endAction("resend verification", &ok)

	if email == "" {
		email = s.resolveVerificationEmail(ctx)
	}

	if err := s.provider.ResendVerificationEmail(ctx, email); err != nil {
		s.setError(ClassifyError(err))
		return false
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventVerificationResent,
		Email:     NormalizeEmail(email),
	})
	return true
}

// PendingEmail returns the email persisted by Register, if any
func (s *Store) PendingEmail(ctx context.Context) (string, error) {
	return s.pending.PendingEmail(ctx)
}

// Refresh refetches the current user from the backend
func (s *Store) Refresh(ctx context.Context) (ok bool) {
	s.beginAction()
	defer s.endAction("refresh", &ok)
	return s.refetchUser(ctx)
}

// UpdateUser merges a partial profile update. General fields, interests
// and sub interests use independent write paths: a failing write does not
// roll back or block the others, and is not retried. Interest sets are
// written first; a step advance is dropped when it would skip a step the
// resulting profile does not satisfy. The authoritative profile is
// refetched afterwards and wins over local state.
func (s *Store) UpdateUser(ctx context.Context, update ProfileUpdate) (err error) {
	current := s.User()
	if current == nil {
		s.setError(ErrNoSession)
		return ErrNoSession
	}

	s.beginAction()
	ok := true
	defer func() {
		if ok || err != nil {
			return
		}
		if authErr := s.State().Error; authErr != nil {
			err = authErr
		}
	}()
	defer s.endAction("update user", &ok)

	update.ProfileFields = s.forwardOnly(current, update.ProfileFields)

	var failures []error
	optimistic := current.Profile.Clone()
	if optimistic == nil {
		optimistic = &Profile{UserID: current.ID, OnboardingStep: s.registry.First().ID}
	}

	if update.Interests != nil {
		if werr := s.provider.UpdateInterests(ctx, current.ID, update.Interests); werr != nil {
			failures = append(failures, fmt.Errorf("interests: %w", werr))
		} else {
			optimistic.Interests = dedupe(update.Interests)
		}
	}

	if update.SubInterests != nil {
		if werr := s.provider.UpdateSubInterests(ctx, current.ID, update.SubInterests); werr != nil {
			failures = append(failures, fmt.Errorf("sub interests: %w", werr))
		} else {
			optimistic.SubInterests = dedupe(update.SubInterests)
		}
	}

	// the step is judged after the interest writes it may depend on
	update.ProfileFields = s.withoutSkips(current, optimistic, update.ProfileFields)

	if !update.ProfileFields.Empty() {
		if werr := s.provider.UpdateProfile(ctx, current.ID, update.ProfileFields); werr != nil {
			failures = append(failures, fmt.Errorf("profile fields: %w", werr))
		} else {
			applyFields(optimistic, update.ProfileFields)
		}
	}

	profile, rerr := s.provider.Profile(ctx, current.ID)
	if rerr != nil || profile == nil {
		s.logger.Warn("profile refetch failed for %s, keeping local merge: %v", current.ID, rerr)
		profile = optimistic
	}

	s.update(func(st *State) {
		if st.User == nil || st.User.ID != current.ID {
			return
		}
		st.User.Profile = profile
	})

	if len(failures) > 0 {
		s.logger.Warn("partial profile update for %s: %s", current.ID, print.MaybePrettyJSON(map[string]any{
			"user_id":  current.ID,
			"failures": errorStrings(failures),
		}))
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventProfilePartialWrite,
			UserID:    current.ID,
			Metadata:  map[string]any{"failures": errorStrings(failures)},
		})
		s.setError(ClassifyError(failures[0]))
		return errors.Join(failures...)
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		UserID:    current.ID,
	})
	return nil
}

// forwardOnly drops step updates that would move the profile backwards
// or to an unregistered step
func (s *Store) forwardOnly(current *User, fields ProfileFields) ProfileFields {
	if fields.OnboardingStep == nil {
		return fields
	}

	target := *fields.OnboardingStep
	if s.registry.Index(target) < 0 {
		s.logger.Warn("ignoring unknown onboarding step %q for %s", target, current.ID)
		fields.OnboardingStep = nil
		return fields
	}

	if current.Profile != nil && s.registry.IsAfter(current.Profile.OnboardingStep, target) {
		s.logger.Warn("ignoring onboarding step regression %q -> %q for %s",
			current.Profile.OnboardingStep, target, current.ID)
		fields.OnboardingStep = nil
	}
	return fields
}

// withoutSkips drops a step update while an earlier step is unsatisfied.
// profile reflects the writes of this update that already succeeded.
func (s *Store) withoutSkips(current *User, profile *Profile, fields ProfileFields) ProfileFields {
	if fields.OnboardingStep == nil {
		return fields
	}

	candidate := profile.Clone()
	rest := fields
	rest.OnboardingStep = nil
	applyFields(candidate, rest)

	target := *fields.OnboardingStep
	if missing, ok := s.registry.EarliestUnsatisfiedBefore(target, &current.Session, candidate); ok {
		s.logger.Warn("ignoring onboarding step skip %q -> %q for %s: %q is not satisfied",
			candidate.OnboardingStep, target, current.ID, missing.ID)
		fields.OnboardingStep = nil
	}
	return fields
}

func (s *Store) refetchUser(ctx context.Context) bool {
	user, err := s.provider.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("refetch current user failed: %v", err)
		s.setError(ClassifyError(err))
		return false
	}
	s.update(func(st *State) {
		st.User = user
	})
	return true
}

func (s *Store) resolveVerificationEmail(ctx context.Context) string {
	email, err := s.pending.PendingEmail(ctx)
	if err != nil {
		s.logger.Warn("failed to read pending email: %v", err)
	}
	if email != "" {
		return email
	}
	if u := s.User(); u != nil {
		return u.Email
	}
	return ""
}

func (s *Store) clearPendingEmail(ctx context.Context) {
	if err := s.pending.ClearPendingEmail(ctx); err != nil {
		s.logger.Warn("failed to clear pending email: %v", err)
	}
}

func (s *Store) hasUser() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User != nil
}

func (s *Store) beginAction() {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = nil
	})
}

// endAction must be deferred directly so recover works. Unexpected panics
// in collaborators become KindUnknown errors; loading is always reset.
func (s *Store) endAction(op string, ok *bool) {
	if r := recover(); r != nil {
		s.logger.Error("%s panicked: %v", op, r)
		s.setError(NewUnknownError(fmt.Sprint(r)))
		*ok = false
	}
	s.setLoading(false)
}

func (s *Store) setLoading(loading bool) {
	s.update(func(st *State) {
		st.IsLoading = loading
	})
}

func (s *Store) setError(err *AuthError) {
	s.update(func(st *State) {
		st.Error = err
	})
}

func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := State{
		User:      s.state.User.Clone(),
		IsLoading: s.state.IsLoading,
		Error:     s.state.Error,
	}
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	listeners := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func (s *Store) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error: %v", err)
	}
}

func applyFields(p *Profile, f ProfileFields) {
	if f.OnboardingStep != nil {
		p.OnboardingStep = *f.OnboardingStep
	}
	if f.Username != nil {
		p.Username = *f.Username
	}
	if f.DisplayName != nil {
		p.DisplayName = *f.DisplayName
	}
	if f.AvatarURL != nil {
		p.AvatarURL = *f.AvatarURL
	}
	if f.DealBreakers != nil {
		p.DealBreakers = append([]string(nil), f.DealBreakers...)
	}
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
