// Package backend talks to the hosted authentication service on behalf of a
// single browser session and keeps that session's tokens.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("user already registered")
	ErrSessionExpired     = errors.New("session expired")
	ErrRemovalUnsupported = errors.New("identity removal not configured")
)

// Identity is the authentication record of a user, independent of the
// application profile.
type Identity struct {
	ID       uuid.UUID              `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// MetadataString returns a string metadata value or "".
func (i Identity) MetadataString(key string) string {
	v, _ := i.Metadata[key].(string)
	return v
}

// Session is the live authentication state of one browser session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"user"`
}

// expiryLeeway refreshes tokens slightly before they lapse.
const expiryLeeway = 30 * time.Second

// Expired reports whether the access token must be refreshed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now.Add(expiryLeeway))
}

// Provider is the remote, stateless side of authentication.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignUp creates an identity. The returned session is nil when the
	// service requires email confirmation before the first sign-in.
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*Identity, *Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	User(ctx context.Context, accessToken string) (*Identity, error)
	ResetPassword(ctx context.Context, email, redirectURL string) error
}

// IdentityRemover deletes identities. Registration uses it to undo a sign-up
// whose profile could not be created.
type IdentityRemover interface {
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
}

// AuthEvent names an auth-state transition.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// StateChange is delivered to auth-state listeners. Identity is nil after
// sign-out.
type StateChange struct {
	Event    AuthEvent `json:"event"`
	Identity *Identity `json:"identity,omitempty"`
	Origin   string    `json:"origin,omitempty"`
}
