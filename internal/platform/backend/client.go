package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Clients builds the per-session Client for a browser session id.
type Clients struct {
	provider      Provider
	storage       TokenStorage
	bus           EventBus
	resetRedirect string
	logger        zerolog.Logger
	now           func() time.Time
}

func NewClients(provider Provider, storage TokenStorage, bus EventBus, resetRedirect string, logger zerolog.Logger) *Clients {
	return &Clients{
		provider:      provider,
		storage:       storage,
		bus:           bus,
		resetRedirect: resetRedirect,
		logger:        logger,
		now:           time.Now,
	}
}

// For returns the client bound to sid.
func (f *Clients) For(sid string) *Client {
	return &Client{
		sid:           sid,
		provider:      f.provider,
		storage:       f.storage,
		bus:           f.bus,
		resetRedirect: f.resetRedirect,
		logger:        f.logger.With().Str("sid", sid).Logger(),
		now:           f.now,
	}
}

// Provider exposes the shared remote provider.
func (f *Clients) Provider() Provider {
	return f.provider
}

// Client performs session operations for one browser session and persists
// the resulting tokens.
type Client struct {
	sid           string
	provider      Provider
	storage       TokenStorage
	bus           EventBus
	resetRedirect string
	logger        zerolog.Logger
	now           func() time.Time
}

func (c *Client) publish(ctx context.Context, event AuthEvent, identity *Identity) {
	if err := c.bus.Publish(ctx, c.sid, StateChange{Event: event, Identity: identity}); err != nil {
		c.logger.Warn().Err(err).Str("event", string(event)).Msg("failed to publish auth event")
	}
}

// GetSession returns the current session, refreshing the access token when it
// has expired. A session whose refresh fails is dropped and (nil, nil) is
// returned.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	sess, err := c.storage.Load(ctx, c.sid)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Expired(c.now()) {
		return sess, nil
	}

	refreshed, err := c.provider.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if !errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		c.logger.Info().Msg("session refresh rejected, signing out locally")
		if delErr := c.storage.Delete(ctx, c.sid); delErr != nil {
			c.logger.Warn().Err(delErr).Msg("failed to drop expired session")
		}
		c.publish(ctx, EventSignedOut, nil)
		return nil, nil
	}
	if err := c.storage.Save(ctx, c.sid, refreshed); err != nil {
		return nil, err
	}
	c.publish(ctx, EventTokenRefreshed, &refreshed.Identity)
	return refreshed, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := c.storage.Save(ctx, c.sid, sess); err != nil {
		return nil, err
	}
	c.publish(ctx, EventSignedIn, &sess.Identity)
	return sess, nil
}

// SignUp creates an identity. When the service returns a session right away
// the browser session is signed in.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*Identity, error) {
	identity, sess, err := c.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		if err := c.storage.Save(ctx, c.sid, sess); err != nil {
			return nil, err
		}
		c.publish(ctx, EventSignedIn, &sess.Identity)
	}
	return identity, nil
}

// SignOut revokes the session remotely. Local tokens are removed and
// listeners notified even when the remote call fails; the remote error is
// still returned.
func (c *Client) SignOut(ctx context.Context) error {
	var remoteErr error
	sess, err := c.storage.Load(ctx, c.sid)
	if err != nil {
		remoteErr = err
	} else if sess != nil {
		remoteErr = c.provider.SignOut(ctx, sess.AccessToken)
	}

	if err := c.storage.Delete(ctx, c.sid); err != nil {
		c.logger.Warn().Err(err).Msg("failed to delete session tokens")
	}
	c.publish(ctx, EventSignedOut, nil)

	if remoteErr != nil {
		return fmt.Errorf("sign out: %w", remoteErr)
	}
	return nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	return c.provider.ResetPassword(ctx, email, c.resetRedirect)
}

// NotifyUserUpdated tells every listener of this session that the user's
// data changed.
func (c *Client) NotifyUserUpdated(ctx context.Context, identity *Identity) {
	c.publish(ctx, EventUserUpdated, identity)
}

// OnAuthStateChange registers fn for every later auth-state transition of
// this session. fn first receives INITIAL_SESSION with the stored identity.
func (c *Client) OnAuthStateChange(ctx context.Context, fn func(StateChange)) (unsubscribe func()) {
	unsubscribe = c.bus.Subscribe(c.sid, fn)

	initial := StateChange{Event: EventInitialSession}
	if sess, err := c.storage.Load(ctx, c.sid); err == nil && sess != nil {
		initial.Identity = &sess.Identity
	}
	fn(initial)
	return unsubscribe
}

// RemoveIdentity deletes an identity when the provider supports it.
func (c *Client) RemoveIdentity(ctx context.Context, identity *Identity) error {
	remover, ok := c.provider.(IdentityRemover)
	if !ok {
		return ErrRemovalUnsupported
	}
	if err := remover.DeleteIdentity(ctx, identity.ID); err != nil {
		return err
	}
	// A removed identity cannot keep a session.
	if sess, err := c.storage.Load(ctx, c.sid); err == nil && sess != nil && sess.Identity.ID == identity.ID {
		_ = c.storage.Delete(ctx, c.sid)
		c.publish(ctx, EventSignedOut, nil)
	}
	return nil
}
