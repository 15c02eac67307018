package authflow_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements authflow.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SignUp(ctx context.Context, email, password string) (*authflow.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*authflow.Session)
	return s, args.Error(1)
}

func (m *MockBackend) SignIn(ctx context.Context, email, password string) (*authflow.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*authflow.Session)
	return s, args.Error(1)
}

func (m *MockBackend) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) CurrentSession(ctx context.Context) (*authflow.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*authflow.Session)
	return s, args.Error(1)
}

func (m *MockBackend) ResendVerification(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockBackend) GetProfile(ctx context.Context, userID string) (*authflow.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*authflow.Profile)
	return p, args.Error(1)
}

func (m *MockBackend) UpdateProfile(ctx context.Context, userID string, fields authflow.ProfileFields) error {
	args := m.Called(ctx, userID, fields)
	return args.Error(0)
}

func (m *MockBackend) UpdateInterests(ctx context.Context, userID string, interests []string) error {
	args := m.Called(ctx, userID, interests)
	return args.Error(0)
}

func (m *MockBackend) UpdateSubInterests(ctx context.Context, userID string, subInterests []string) error {
	args := m.Called(ctx, userID, subInterests)
	return args.Error(0)
}

func (m *MockBackend) Subscribe() (<-chan authflow.SessionEvent, func()) {
	args := m.Called()
	ch, _ := args.Get(0).(<-chan authflow.SessionEvent)
	release, _ := args.Get(1).(func())
	if release == nil {
		release = func() {}
	}
	return ch, release
}

// navRecorder records every route it is asked to navigate to
type navRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (n *navRecorder) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *navRecorder) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func (n *navRecorder) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

type logCall struct {
	level   string
	message string
}

// captureLogger implements authflow.Logger and keeps formatted messages
type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) Debug(format string, args ...any) { l.add("debug", format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.add("info", format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.add("warn", format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.add("error", format, args...) }

func (l *captureLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: fmt.Sprintf(format, args...)})
}

func (l *captureLogger) Levels(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c.message)
		}
	}
	return out
}

// activityRecorder implements authflow.ActivitySink
type activityRecorder struct {
	mu     sync.Mutex
	events []authflow.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event authflow.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) Events() []authflow.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]authflow.ActivityEvent(nil), r.events...)
}

func (r *activityRecorder) Types() []authflow.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authflow.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
