package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"

	"github.com/healthportal/portal/internal/platform/auth"
)

// GoTrueConfig configures the hosted auth client.
type GoTrueConfig struct {
	BaseURL    string
	APIKey     string
	ServiceKey string
	JWTSecret  string
	// Transport carries the requests. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// GoTrueProvider implements Provider against the hosted auth API mounted
// under /auth/v1.
type GoTrueProvider struct {
	api        gotrue.Client
	transport  http.RoundTripper
	serviceKey string
	jwtSecret  []byte
	issuer     string
}

func NewGoTrueProvider(cfg GoTrueConfig) *GoTrueProvider {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1"
	p := &GoTrueProvider{
		// The project reference is unused once the URL is overridden.
		api:        gotrue.New("", cfg.APIKey).WithCustomAuthURL(endpoint),
		transport:  transport,
		serviceKey: cfg.ServiceKey,
		issuer:     endpoint,
	}
	if cfg.JWTSecret != "" {
		p.jwtSecret = []byte(cfg.JWTSecret)
	}
	return p
}

// exchange carries one call: it binds the request to the caller's context,
// adds extra query parameters and records the response status, which the
// client library folds into its error text.
type exchange struct {
	ctx    context.Context
	base   http.RoundTripper
	query  url.Values
	status int
}

func (x *exchange) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(x.ctx)
	if len(x.query) > 0 {
		q := req.URL.Query()
		for k, vs := range x.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	resp, err := x.base.RoundTrip(req)
	if resp != nil {
		x.status = resp.StatusCode
	}
	return resp, err
}

// rejected reports a 4xx answer.
func (x *exchange) rejected() bool {
	return x.status >= http.StatusBadRequest && x.status < http.StatusInternalServerError
}

// call returns a client for one request authorized with token, or with the
// API key alone when token is empty.
func (p *GoTrueProvider) call(ctx context.Context, token string, query url.Values) (gotrue.Client, *exchange) {
	x := &exchange{ctx: ctx, base: p.transport, query: query}
	c := p.api.WithClient(http.Client{Transport: x})
	if token != "" {
		c = c.WithToken(token)
	}
	return c, x
}

func identityFrom(u types.User) Identity {
	return Identity{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

func sessionFrom(s types.Session) *Session {
	out := &Session{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, Identity: identityFrom(s.User)}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(int64(s.ExpiresAt), 0)
	case s.ExpiresIn > 0:
		out.ExpiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out
}

func authError(err error) error {
	return fmt.Errorf("auth service: %w", err)
}

func (p *GoTrueProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	c, x := p.call(ctx, "", nil)
	resp, err := c.Token(types.TokenRequest{GrantType: "password", Email: email, Password: password})
	if err != nil {
		if x.status == http.StatusBadRequest || x.status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return nil, authError(err)
	}
	return sessionFrom(resp.Session), nil
}

func (p *GoTrueProvider) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*Identity, *Session, error) {
	c, x := p.call(ctx, "", nil)
	resp, err := c.Signup(types.SignupRequest{Email: email, Password: password, Data: metadata})
	if err != nil {
		msg := strings.ToLower(err.Error())
		if x.rejected() && (strings.Contains(msg, "user_already_exists") || strings.Contains(msg, "already registered")) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, authError(err)
	}

	// The response is a session when auto-confirm is on and a bare user
	// otherwise.
	if resp.AccessToken != "" && resp.Session.User.ID != uuid.Nil {
		sess := sessionFrom(resp.Session)
		id := sess.Identity
		return &id, sess, nil
	}
	if resp.User.ID == uuid.Nil {
		return nil, nil, errors.New("auth service: signup returned no user")
	}
	id := identityFrom(resp.User)
	return &id, nil, nil
}

func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	c, x := p.call(ctx, accessToken, nil)
	if err := c.Logout(); err != nil {
		if x.status == http.StatusUnauthorized {
			// Already invalid on the server side.
			return nil
		}
		return authError(err)
	}
	return nil
}

func (p *GoTrueProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	c, x := p.call(ctx, "", nil)
	resp, err := c.Token(types.TokenRequest{GrantType: "refresh_token", RefreshToken: refreshToken})
	if err != nil {
		if x.rejected() {
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return nil, authError(err)
	}
	return sessionFrom(resp.Session), nil
}

// User resolves the identity behind an access token. With a JWT secret the
// token is verified locally, otherwise the service is asked.
func (p *GoTrueProvider) User(ctx context.Context, accessToken string) (*Identity, error) {
	if p.jwtSecret != nil {
		claims, err := auth.ParseToken(p.jwtSecret, accessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("invalid token subject: %w", err)
		}
		return &Identity{ID: id, Email: claims.Email, Metadata: claims.UserMetadata}, nil
	}

	c, x := p.call(ctx, accessToken, nil)
	resp, err := c.GetUser()
	if err != nil {
		if x.status == http.StatusUnauthorized {
			return nil, ErrSessionExpired
		}
		return nil, authError(err)
	}
	id := identityFrom(resp.User)
	return &id, nil
}

func (p *GoTrueProvider) ResetPassword(ctx context.Context, email, redirectURL string) error {
	var query url.Values
	if redirectURL != "" {
		query = url.Values{"redirect_to": {redirectURL}}
	}
	c, _ := p.call(ctx, "", query)
	if err := c.Recover(types.RecoverRequest{Email: email}); err != nil {
		return authError(err)
	}
	return nil
}

// DeleteIdentity requires the service role key.
func (p *GoTrueProvider) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if p.serviceKey == "" {
		return ErrRemovalUnsupported
	}
	c, _ := p.call(ctx, p.serviceKey, nil)
	if err := c.AdminDeleteUser(types.AdminDeleteUserRequest{UserID: id}); err != nil {
		return authError(err)
	}
	return nil
}

// Issuer is the iss claim of tokens minted by the service.
func (p *GoTrueProvider) Issuer() string {
	return p.issuer
}
