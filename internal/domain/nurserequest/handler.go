package nurserequest

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/nurse-requests", h.List, auth.RequireRole("patient", "nurse"))
	api.POST("/nurse-requests", h.Create, auth.RequireRole("patient"))
	api.PATCH("/nurse-requests/:id/status", h.UpdateStatus, auth.RequireRole("patient", "nurse"))

	nurses := api.Group("", auth.RequireRole("nurse"))
	nurses.GET("/nurse-requests/open", h.ListOpen)
	nurses.POST("/nurse-requests/:id/accept", h.Accept)
}

func (h *Handler) List(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	switch {
	case who.Is("admin"):
		return c.JSON(http.StatusOK, h.svc.ListAll(ctx))
	case who.Is("nurse"):
		return c.JSON(http.StatusOK, h.svc.ListForNurse(ctx, who.ID))
	default:
		return c.JSON(http.StatusOK, h.svc.ListForPatient(ctx, who.ID))
	}
}

func (h *Handler) ListOpen(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.ListOpen(c.Request().Context()))
}

func (h *Handler) Create(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var r Request
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !who.Is("admin") {
		r.PatientID = who.ID
	}
	created, err := h.svc.Create(c.Request().Context(), &r)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Accept(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Accept(c.Request().Context(), id, who.ID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if existing == nil {
		return echo.NewHTTPError(http.StatusNotFound, "nurse request not found")
	}
	if !who.Is("admin") {
		assigned := existing.NurseID != nil && *existing.NurseID == who.ID
		switch {
		case who.Is("nurse") && !assigned:
			return echo.NewHTTPError(http.StatusForbidden, "request is not assigned to you")
		case who.Is("patient") && existing.PatientID != who.ID:
			return echo.NewHTTPError(http.StatusNotFound, "nurse request not found")
		case who.Is("patient") && req.Status != string(StatusCancelled):
			return echo.NewHTTPError(http.StatusForbidden, "patients may only cancel requests")
		}
	}
	r, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}
