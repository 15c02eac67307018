package backend

import (
	"context"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/repository"
)

// Client is the per process handle on a Service. It holds the current
// access token and delivers change events to its subscribers in
// publication order. It implements authflow.Backend.
type Client struct {
	svc *Service

	mu          sync.Mutex
	token       string
	pendingUser uuid.UUID
	subs        map[int]chan authflow.SessionEvent
	nextSub     int
	closed      bool
}

var _ authflow.Backend = (*Client)(nil)

func (c *Client) SignUp(ctx context.Context, email, password string) (*authflow.Session, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := c.svc.signUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pendingUser = user.ID
	c.mu.Unlock()

	return toSession(user, ""), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*authflow.Session, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	user, token, err := c.svc.signIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = token
	c.pendingUser = uuid.Nil
	c.mu.Unlock()

	session := toSession(user, token)
	c.emit(authflow.EventSignedIn, session)
	return session, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	hadSession := c.token != ""
	c.token = ""
	c.pendingUser = uuid.Nil
	c.mu.Unlock()

	if hadSession {
		c.emit(authflow.EventSignedOut, nil)
	}
	return nil
}

// CurrentSession returns nil, nil without a session. An expired or
// revoked token is dropped.
func (c *Client) CurrentSession(ctx context.Context) (*authflow.Session, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	session, err := c.svc.session(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) || isAuthError(err) {
			c.svc.logger.Debug("dropping invalid session: %v", err)
			c.mu.Lock()
			if c.token == token {
				c.token = ""
			}
			c.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	return c.svc.resendVerification(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*authflow.Profile, error) {
	id, err := c.authorize(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := c.svc.repo.Profiles().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProfile(snapshot), nil
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, fields authflow.ProfileFields) error {
	id, err := c.authorize(ctx, userID)
	if err != nil {
		return err
	}

	return c.svc.repo.Profiles().Update(ctx, id, repository.ProfileChanges{
		OnboardingStep: fields.OnboardingStep,
		Username:       fields.Username,
		DisplayName:    fields.DisplayName,
		AvatarURL:      fields.AvatarURL,
		DealBreakers:   fields.DealBreakers,
	})
}

func (c *Client) UpdateInterests(ctx context.Context, userID string, interests []string) error {
	id, err := c.authorize(ctx, userID)
	if err != nil {
		return err
	}
	return c.svc.repo.Profiles().ReplaceInterests(ctx, id, interests)
}

func (c *Client) UpdateSubInterests(ctx context.Context, userID string, subInterests []string) error {
	id, err := c.authorize(ctx, userID)
	if err != nil {
		return err
	}
	return c.svc.repo.Profiles().ReplaceSubInterests(ctx, id, subInterests)
}

// Subscribe returns a buffered channel of change events. The release
// function unsubscribes and closes the channel.
func (c *Client) Subscribe() (<-chan authflow.SessionEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan authflow.SessionEvent, c.svc.cfg.EventBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close detaches the client from the service and closes every subscription
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.svc.detach(c)
}

// onEmailConfirmed is invoked by the service after a link click. A client
// awaiting this user's verification gets a session, as if the link was
// opened in the same app.
func (c *Client) onEmailConfirmed(user *repository.UserRecord) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	holds := false
	if c.token != "" {
		if claims, err := c.svc.tokens.Validate(c.token); err == nil && claims.Subject == user.ID.String() {
			holds = true
		}
	}
	pending := c.pendingUser == user.ID
	c.mu.Unlock()

	if !holds && !pending {
		return
	}

	if !holds {
		token, err := c.svc.tokens.Generate(user.ID, user.Email)
		if err != nil {
			c.svc.logger.Error("failed to mint session after confirmation: %v", err)
			return
		}
		c.mu.Lock()
		c.token = token
		c.pendingUser = uuid.Nil
		c.mu.Unlock()
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	c.emit(authflow.EventEmailConfirmed, toSession(user, token))
}

func (c *Client) emit(kind authflow.SessionEventKind, session *authflow.Session) {
	evt := authflow.SessionEvent{
		ID:         ulid.Make().String(),
		Kind:       kind,
		Session:    session,
		OccurredAt: c.svc.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.subs {
		select {
		case ch <- evt:
		default:
			c.svc.logger.Warn("subscriber %d is full, dropping %s event %s", id, evt.Kind, evt.ID)
		}
	}
}

func (c *Client) authorize(ctx context.Context, userID string) (uuid.UUID, error) {
	session, err := c.CurrentSession(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if session == nil {
		return uuid.Nil, errSessionMissing
	}
	if session.ID != userID {
		return uuid.Nil, errRowSecurity
	}
	return uuid.Parse(userID)
}

func (c *Client) ensureOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	return nil
}

func isAuthError(err error) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryAuth
}
