package message

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

// RegisterRoutes exposes messaging to every signed-in user.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/messages", h.List)
	api.POST("/messages", h.Send)
	api.PATCH("/messages/:id/read", h.MarkRead)
	api.DELETE("/messages/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	items := h.svc.ListForUser(c.Request().Context(), who.ID)
	if c.QueryParam("unread") == "true" {
		unread := make([]*Message, 0, len(items))
		for _, m := range items {
			if m.UnreadBy(who.ID) {
				unread = append(unread, m)
			}
		}
		items = unread
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Send(c echo.Context) error {
	who, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var m Message
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.SenderID = who.ID
	sent, err := h.svc.Send(c.Request().Context(), &m)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, sent)
}

func (h *Handler) owned(c echo.Context) (*Message, auth.Principal, error) {
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
	if m == nil || (m.SenderID != who.ID && m.RecipientID != who.ID && !who.Is("admin")) {
		return nil, who, echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	return m, who, nil
}

func (h *Handler) MarkRead(c echo.Context) error {
	m, who, err := h.owned(c)
	if err != nil {
		return err
	}
	if m.RecipientID != who.ID {
		return echo.NewHTTPError(http.StatusForbidden, "only the recipient can mark a message read")
	}
	read, err := h.svc.MarkRead(c.Request().Context(), m.ID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, read)
}

func (h *Handler) Delete(c echo.Context) error {
	m, _, err := h.owned(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), m.ID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
