package appointment

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
	read := api.Group("", auth.RequireRole("patient", "doctor", "nurse"))
	read.GET("/appointments", h.List)
	read.GET("/appointments/:id", h.Get)

	api.POST("/appointments", h.Create, auth.RequireRole("patient"))
	api.PATCH("/appointments/:id/status", h.UpdateStatus, auth.RequireRole("patient", "doctor"))

	admin := api.Group("", auth.RequireRole("admin"))
	admin.PUT("/appointments/:id", h.Update)
	admin.DELETE("/appointments/:id", h.Delete)
}

// canSee reports whether the caller may read a.
func canSee(who auth.Principal, a *Appointment) bool {
	if who.Is("admin") || who.Is("nurse") {
		return true
	}
	return a.PatientID == who.ID || a.DoctorID == who.ID
}

func (h *Handler) List(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var items []*Appointment
	switch {
	case who.Is("admin"), who.Is("nurse"):
		items = h.svc.ListAll(ctx)
	case who.Is("doctor"):
		items = h.svc.ListForDoctor(ctx, who.ID)
	default:
		items = h.svc.ListForPatient(ctx, who.ID)
	}
	if status := c.QueryParam("status"); status != "" {
		filtered := make([]*Appointment, 0, len(items))
		for _, a := range items {
			if string(a.Status) == status {
				filtered = append(filtered, a)
			}
		}
		items = filtered
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) load(c echo.Context) (*Appointment, auth.Principal, error) {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return nil, who, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, who, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, who, apperr.HTTPError(err)
	}
	if a == nil || !canSee(who, a) {
		return nil, who, echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return a, who, nil
}

func (h *Handler) Get(c echo.Context) error {
	a, _, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Create(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !who.Is("admin") {
		a.PatientID = who.ID
		a.Status = StatusPending
	}
	created, err := h.svc.Create(c.Request().Context(), &a)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	a, who, err := h.load(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Patients may only cancel their own bookings.
	if !who.Is("admin") && !who.Is("doctor") && req.Status != StatusCancelled {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only cancel appointments")
	}
	updated, err := h.svc.UpdateStatus(c.Request().Context(), a.ID, req.Status)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	updated, err := h.svc.Update(c.Request().Context(), &a)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
