package portal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/platform/backend"
	"github.com/healthportal/portal/internal/router"
	"github.com/healthportal/portal/internal/session"
)

// UserView is the signed-in user as shown by the page chrome.
type UserView struct {
	ID    string       `json:"id"`
	Email string       `json:"email"`
	Name  string       `json:"name"`
	Role  profile.Role `json:"role,omitempty"`
}

// PageView is the body of a rendered page.
type PageView struct {
	Page          router.Page `json:"page"`
	Authenticated bool        `json:"authenticated"`
	User          *UserView   `json:"user,omitempty"`
}

// FormResult answers an auth form. Error is the inline banner text.
type FormResult struct {
	OK       bool   `json:"ok"`
	Redirect string `json:"redirect,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

func userView(u *session.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:    u.Identity.ID.String(),
		Email: u.Identity.Email,
		Name:  u.DisplayName(),
		Role:  u.Role(),
	}
}

// respond writes a non-render routing decision.
func respond(c echo.Context, d router.Decision) error {
	switch d.Kind {
	case router.KindRedirect:
		return c.Redirect(http.StatusSeeOther, d.Location)
	case router.KindLoading:
		return c.JSON(http.StatusAccepted, map[string]interface{}{"page": "loading", "loading": true})
	}
	return nil
}

// Page routes the request path and renders the resulting page.
func (s *Server) Page(c echo.Context) error {
	snap := snapshotFrom(c)
	d := router.Resolve(c.Request().URL.Path, snap)
	if d.Kind != router.KindRender {
		return respond(c, d)
	}
	if d.Page == router.PageDashboard {
		return s.Dashboard(c)
	}
	return c.JSON(http.StatusOK, PageView{
		Page:          d.Page,
		Authenticated: snap.Authenticated(),
		User:          userView(snap.User),
	})
}

func formError(c echo.Context, status int, msg string) error {
	return c.JSON(status, FormResult{Error: msg})
}

// formFailure maps a session error to its banner.
func formFailure(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return formError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backend.ErrInvalidCredentials):
		return formError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, backend.ErrEmailTaken), errors.Is(err, apperr.ErrConflict):
		return formError(c, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrAccountDisabled):
		return formError(c, http.StatusForbidden, err.Error())
	default:
		return formError(c, http.StatusUnprocessableEntity, err.Error())
	}
}

type loginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Login signs the session in.
func (s *Server) Login(c echo.Context) error {
	var f loginForm
	if err := c.Bind(&f); err != nil {
		return formError(c, http.StatusBadRequest, "invalid form")
	}
	if strings.TrimSpace(f.Email) == "" || f.Password == "" {
		return formError(c, http.StatusUnprocessableEntity, "please fill in all fields")
	}

	store := storeFrom(c)
	if _, err := store.Login(c.Request().Context(), f.Email, f.Password); err != nil {
		return formFailure(c, err)
	}
	bindUser(c, store.Snapshot())
	return c.JSON(http.StatusOK, FormResult{OK: true, Redirect: router.PathDashboard})
}

type registerForm struct {
	Email           string  `json:"email" form:"email"`
	Password        string  `json:"password" form:"password"`
	ConfirmPassword string  `json:"confirm_password" form:"confirm_password"`
	FullName        string  `json:"full_name" form:"full_name"`
	Role            string  `json:"role" form:"role"`
	Phone           *string `json:"phone" form:"phone"`
	Specialization  *string `json:"specialization" form:"specialization"`
	LicenseNumber   *string `json:"license_number" form:"license_number"`
	ExperienceYears *int    `json:"experience_years" form:"experience_years"`
	Department      *string `json:"department" form:"department"`
}

// Register creates an account with the chosen role. Sessions that come back
// signed in go to the dashboard; otherwise the user is asked to confirm
// their email first.
func (s *Server) Register(c echo.Context) error {
	var f registerForm
	if err := c.Bind(&f); err != nil {
		return formError(c, http.StatusBadRequest, "invalid form")
	}
	if strings.TrimSpace(f.Email) == "" || f.Password == "" || strings.TrimSpace(f.FullName) == "" {
		return formError(c, http.StatusUnprocessableEntity, "please fill in all required fields")
	}
	if f.ConfirmPassword != "" && f.ConfirmPassword != f.Password {
		return formError(c, http.StatusUnprocessableEntity, "passwords do not match")
	}

	store := storeFrom(c)
	_, err := store.Register(c.Request().Context(), f.Email, f.Password, session.RegisterFields{
		FullName:        f.FullName,
		Role:            profile.Role(f.Role),
		Phone:           blankToNil(f.Phone),
		Specialization:  blankToNil(f.Specialization),
		LicenseNumber:   blankToNil(f.LicenseNumber),
		ExperienceYears: f.ExperienceYears,
		Department:      blankToNil(f.Department),
	})
	if err != nil {
		return formFailure(c, err)
	}

	snap := store.Snapshot()
	bindUser(c, snap)
	if snap.Authenticated() {
		return c.JSON(http.StatusOK, FormResult{OK: true, Redirect: router.PathDashboard})
	}
	return c.JSON(http.StatusOK, FormResult{OK: true, Redirect: router.PathLogin, Message: "check your email to confirm your account"})
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

type forgotForm struct {
	Email string `json:"email" form:"email"`
}

// ForgotPassword requests a reset email.
func (s *Server) ForgotPassword(c echo.Context) error {
	var f forgotForm
	if err := c.Bind(&f); err != nil {
		return formError(c, http.StatusBadRequest, "invalid form")
	}
	if strings.TrimSpace(f.Email) == "" {
		return formError(c, http.StatusUnprocessableEntity, "please enter your email")
	}
	if err := storeFrom(c).ForgotPassword(c.Request().Context(), f.Email); err != nil {
		return formFailure(c, err)
	}
	return c.JSON(http.StatusOK, FormResult{OK: true, Message: "password reset link sent to your email"})
}

// Logout ends the session and always lands on the login page.
func (s *Server) Logout(c echo.Context) error {
	sid := sidFrom(c)
	store := storeFrom(c)
	ctx := c.Request().Context()

	to := router.PathLogin
	ws := s.lookupWorkspace(sid)
	switch {
	case store == nil:
	case ws != nil:
		ws.mu.Lock()
		to = ws.shell.SignOut(ctx, store, s.logger)
		ws.mu.Unlock()
	default:
		if err := store.Logout(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("sign-out failed remotely, local session cleared")
		}
	}
	s.dropWorkspace(sid)
	return c.JSON(http.StatusOK, FormResult{OK: true, Redirect: to})
}
