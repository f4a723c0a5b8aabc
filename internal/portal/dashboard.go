package portal

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/dashboard"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/router"
	"github.com/healthportal/portal/internal/shell"
)

// DashboardView is the body of GET /dashboard.
type DashboardView struct {
	Page    router.Page     `json:"page"`
	Nav     shell.Nav       `json:"nav"`
	Section shell.Section   `json:"section"`
	Query   dashboard.Query `json:"query"`
	Data    any             `json:"data"`
}

// NavigateResult answers POST /dashboard/navigate.
type NavigateResult struct {
	Redirect string     `json:"redirect,omitempty"`
	Nav      *shell.Nav `json:"nav,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// open resolves the dashboard route for the current session and returns its
// workspace. A nil workspace means the response has been written.
func (s *Server) open(c echo.Context) (*workspace, error) {
	snap := snapshotFrom(c)
	d := router.Resolve(router.PathDashboard, snap)
	if d.Kind != router.KindRender {
		return nil, respond(c, d)
	}
	ws, err := s.workspace(sidFrom(c), storeFrom(c), snap.User)
	if err != nil {
		return nil, apperr.HTTPError(err)
	}
	return ws, nil
}

// Dashboard renders the active section of the signed-in user's dashboard,
// loading its data on the first visit or when reload=1.
func (s *Server) Dashboard(c echo.Context) error {
	ws, err := s.open(c)
	if ws == nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ctx := c.Request().Context()
	if c.QueryParam("reload") == "1" {
		err = ws.board.Reload(ctx)
	} else {
		err = ws.board.Mount(ctx)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("role", string(ws.role)).Msg("failed to load dashboard")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to load dashboard")
	}

	if key := c.QueryParam("section"); key != "" {
		out, err := ws.shell.Navigate(key)
		if err != nil {
			return apperr.HTTPError(err)
		}
		if out == shell.LeaveDashboard {
			return c.Redirect(http.StatusSeeOther, router.PathHome)
		}
	}

	var q dashboard.Query
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data, err := ws.board.View(ws.shell.Active, q)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownSection) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, DashboardView{
		Page:    router.PageDashboard,
		Nav:     ws.shell.Nav(),
		Section: ws.shell.Active,
		Query:   q,
		Data:    data,
	})
}

type navigateForm struct {
	Section string `json:"section" form:"section"`
}

// Navigate switches the active section. Home leaves the dashboard.
func (s *Server) Navigate(c echo.Context) error {
	ws, err := s.open(c)
	if ws == nil {
		return err
	}
	var f navigateForm
	if err := c.Bind(&f); err != nil {
		return c.JSON(http.StatusBadRequest, NavigateResult{Error: "invalid form"})
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	out, err := ws.shell.Navigate(f.Section)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, NavigateResult{Error: err.Error()})
	}
	if out == shell.LeaveDashboard {
		return c.JSON(http.StatusOK, NavigateResult{Redirect: router.PathHome})
	}
	nav := ws.shell.Nav()
	return c.JSON(http.StatusOK, NavigateResult{Nav: &nav})
}

// Action applies a dashboard mutation. The request body is the action's
// payload. Failures answer 422 and leave the dashboard unchanged.
func (s *Server) Action(c echo.Context) error {
	ws, err := s.open(c)
	if ws == nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxActionBody+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dashboard.Fail(fmt.Errorf("read payload: %w", err)))
	}
	if len(body) > maxActionBody {
		return c.JSON(http.StatusRequestEntityTooLarge, dashboard.Fail(errors.New("payload too large")))
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ctx := c.Request().Context()
	if err := ws.board.Mount(ctx); err != nil {
		s.logger.Error().Err(err).Str("role", string(ws.role)).Msg("failed to load dashboard")
		return c.JSON(http.StatusBadGateway, dashboard.Fail(errors.New("failed to load dashboard")))
	}

	action := dashboard.Action{Name: c.Param("action")}
	if len(body) > 0 {
		action.Payload = body
	}
	res := ws.board.Apply(ctx, action)
	if !res.OK {
		s.logger.Info().Str("action", action.Name).Str("role", string(ws.role)).Str("error", res.Error).Msg("dashboard action failed")
		return c.JSON(http.StatusUnprocessableEntity, res)
	}
	return c.JSON(http.StatusOK, res)
}
