package payment

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
	api.GET("/payments", h.List, auth.RequireRole("patient"))
	api.POST("/payments/:id/pay", h.Pay, auth.RequireRole("patient"))

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/payments", h.Create)
	admin.PATCH("/payments/:id/status", h.UpdateStatus)
}

func (h *Handler) List(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	if who.Is("admin") {
		return c.JSON(http.StatusOK, h.svc.ListAll(c.Request().Context()))
	}
	return c.JSON(http.StatusOK, h.svc.ListForPatient(c.Request().Context(), who.ID))
}

func (h *Handler) Create(c echo.Context) error {
	var p Payment
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.Create(c.Request().Context(), &p)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

type statusRequest struct {
	Status Status `json:"status"`
	Method string `json:"payment_method"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, req.Method)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// Pay settles one of the caller's own outstanding payments.
func (h *Handler) Pay(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if existing == nil || (existing.PatientID != who.ID && !who.Is("admin")) {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	if !existing.Status.Outstanding() {
		return echo.NewHTTPError(http.StatusConflict, "payment is not outstanding")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateStatus(c.Request().Context(), id, StatusPaid, req.Method)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}
