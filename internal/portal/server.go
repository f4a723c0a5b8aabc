// Package portal serves the browser-facing portal: the routed pages, the
// auth forms and the role dashboards, each bound to a cookie session.
package portal

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/dashboard"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/session"
	"github.com/healthportal/portal/internal/shell"
)

const (
	ctxSID   = "portal_sid"
	ctxStore = "portal_store"

	// maxActionBody bounds dashboard action payloads.
	maxActionBody = 1 << 20
)

// Config controls the session cookie and the auth form throttle.
type Config struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	// FormThrottle guards login, registration and password reset. Nil
	// leaves the forms unthrottled.
	FormThrottle echo.MiddlewareFunc
}

// Server binds browser sessions to their session stores and dashboards.
type Server struct {
	cfg      Config
	sessions *session.Manager
	deps     dashboard.Deps
	logger   zerolog.Logger

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// workspace is the dashboard state of one signed-in session.
type workspace struct {
	mu     sync.Mutex
	userID uuid.UUID
	role   profile.Role
	shell  *shell.Shell
	board  dashboard.Dashboard
}

// New returns a Server. deps.Self is ignored; each session's store serves as
// its own profile updater.
func New(cfg Config, sessions *session.Manager, deps dashboard.Deps, logger zerolog.Logger) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "portal_sid"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:        cfg,
		sessions:   sessions,
		deps:       deps,
		logger:     logger.With().Str("component", "portal").Logger(),
		workspaces: make(map[string]*workspace),
	}
	sessions.OnEvict(s.dropWorkspace)
	return s
}

// RegisterRoutes mounts the page, form and dashboard routes on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	// Route-level middleware keeps sessions off the API and health routes.
	for _, path := range []string{"/", "/about", "/services", "/contact", "/login", "/register", "/forgot-password"} {
		e.GET(path, s.Page, s.Session)
	}

	forms := []echo.MiddlewareFunc{s.StartSession}
	if s.cfg.FormThrottle != nil {
		forms = []echo.MiddlewareFunc{s.cfg.FormThrottle, s.StartSession}
	}
	e.POST("/login", s.Login, forms...)
	e.POST("/register", s.Register, forms...)
	e.POST("/forgot-password", s.ForgotPassword, forms...)
	e.POST("/logout", s.Logout, s.Session)

	e.GET("/dashboard", s.Dashboard, s.Session)
	e.POST("/dashboard/navigate", s.Navigate, s.Session)
	e.POST("/dashboard/actions/:action", s.Action, s.Session)

	// Unknown pages are routed like any other path and end up at home.
	e.GET("/*", s.Page, s.Session)
}

// Session resolves the browser session from its cookie and exposes the
// signed-in user on the request context. Visitors without a session are
// served anonymously and get no cookie.
func (s *Server) Session(next echo.HandlerFunc) echo.HandlerFunc {
	return s.session(next, false)
}

// StartSession is Session for the auth forms. It issues the cookie and
// keeps a store for visitors that have none.
func (s *Server) StartSession(next echo.HandlerFunc) echo.HandlerFunc {
	return s.session(next, true)
}

func (s *Server) session(next echo.HandlerFunc, start bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		sid := ""
		if ck, err := c.Cookie(s.cfg.CookieName); err == nil {
			if _, perr := uuid.Parse(ck.Value); perr == nil {
				sid = ck.Value
			}
		}

		var store *session.Store
		if sid != "" {
			store = s.sessions.Lookup(ctx, sid)
		}
		if store == nil && start {
			if sid == "" {
				sid = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     s.cfg.CookieName,
					Value:    sid,
					Path:     "/",
					MaxAge:   int(s.cfg.SessionTTL.Seconds()),
					HttpOnly: true,
					Secure:   s.cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			store = s.sessions.Get(ctx, sid)
		}
		if store != nil && errors.Is(store.Revalidate(ctx), session.ErrAccountDisabled) {
			s.dropWorkspace(sid)
		}

		c.Set(ctxSID, sid)
		if store != nil {
			c.Set(ctxStore, store)
		}
		bindUser(c, snapshotFrom(c))
		return next(c)
	}
}

// bindUser puts the signed-in user on the request context so audit entries
// carry it.
func bindUser(c echo.Context, snap session.Snapshot) {
	if snap.User == nil {
		return
	}
	req := c.Request()
	ctx := auth.WithUser(req.Context(), snap.User.Identity.ID.String(), snap.User.Identity.Email, []string{string(snap.User.Role())})
	c.SetRequest(req.WithContext(ctx))
}

func sidFrom(c echo.Context) string {
	sid, _ := c.Get(ctxSID).(string)
	return sid
}

// storeFrom returns the session store of the request, or nil for an
// anonymous visitor.
func storeFrom(c echo.Context) *session.Store {
	store, _ := c.Get(ctxStore).(*session.Store)
	return store
}

func snapshotFrom(c echo.Context) session.Snapshot {
	if store := storeFrom(c); store != nil {
		return store.Snapshot()
	}
	return session.Snapshot{State: session.StateAnonymous}
}

// workspace returns the dashboard state of sid for user, rebuilding it when
// the signed-in user or their role changed since it was created.
func (s *Server) workspace(sid string, store *session.Store, user *session.User) (*workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := user.Role()
	if ws, ok := s.workspaces[sid]; ok && ws.userID == user.Identity.ID && ws.role == role {
		ws.mu.Lock()
		ws.shell.User = user
		ws.mu.Unlock()
		return ws, nil
	}

	sh, err := shell.New(user)
	if err != nil {
		return nil, err
	}
	deps := s.deps
	deps.Self = store
	deps.Logger = s.logger.With().Str("user_id", user.Identity.ID.String()).Str("role", string(role)).Logger()
	board, err := dashboard.New(user, deps)
	if err != nil {
		return nil, err
	}
	ws := &workspace{userID: user.Identity.ID, role: role, shell: sh, board: board}
	s.workspaces[sid] = ws
	return ws, nil
}

func (s *Server) lookupWorkspace(sid string) *workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaces[sid]
}

func (s *Server) dropWorkspace(sid string) {
	s.mu.Lock()
	delete(s.workspaces, sid)
	s.mu.Unlock()
}

// Workspaces reports the number of live dashboard workspaces.
func (s *Server) Workspaces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}
