package medicalrecord

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
	api.GET("/medical-records", h.List, auth.RequireRole("patient", "doctor", "nurse"))
	api.GET("/medical-records/:id", h.Get, auth.RequireRole("patient", "doctor", "nurse"))

	doctors := api.Group("", auth.RequireRole("doctor"))
	doctors.POST("/medical-records", h.Create)
	doctors.PUT("/medical-records/:id", h.Update)
	doctors.DELETE("/medical-records/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	switch {
	case who.Is("admin"), who.Is("nurse"):
		if pid, err := uuid.Parse(c.QueryParam("patient_id")); err == nil {
			return c.JSON(http.StatusOK, h.svc.ListForPatient(ctx, pid))
		}
		return c.JSON(http.StatusOK, h.svc.ListAll(ctx))
	case who.Is("doctor"):
		return c.JSON(http.StatusOK, h.svc.ListForDoctor(ctx, who.ID))
	default:
		return c.JSON(http.StatusOK, h.svc.ListForPatient(ctx, who.ID))
	}
}

func (h *Handler) load(c echo.Context) (*Record, auth.Principal, error) {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return nil, who, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, who, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, who, apperr.HTTPError(err)
	}
	visible := m != nil && (who.Is("admin") || who.Is("nurse") || m.PatientID == who.ID || m.DoctorID == who.ID)
	if !visible {
		return nil, who, echo.NewHTTPError(http.StatusNotFound, "medical record not found")
	}
	return m, who, nil
}

func (h *Handler) Get(c echo.Context) error {
	m, _, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Create(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var m Record
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !who.Is("admin") {
		m.DoctorID = who.ID
	}
	created, err := h.svc.Create(c.Request().Context(), &m)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Update(c echo.Context) error {
	existing, who, err := h.load(c)
	if err != nil {
		return err
	}
	if !who.Is("admin") && existing.DoctorID != who.ID {
		return echo.NewHTTPError(http.StatusForbidden, "only the authoring doctor may edit a record")
	}
	var m Record
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = existing.ID
	m.PatientID = existing.PatientID
	m.DoctorID = existing.DoctorID
	if m.RecordDate.IsZero() {
		m.RecordDate = existing.RecordDate
	}
	updated, err := h.svc.Update(c.Request().Context(), &m)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c echo.Context) error {
	existing, who, err := h.load(c)
	if err != nil {
		return err
	}
	if !who.Is("admin") && existing.DoctorID != who.ID {
		return echo.NewHTTPError(http.StatusForbidden, "only the authoring doctor may delete a record")
	}
	if err := h.svc.Delete(c.Request().Context(), existing.ID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
