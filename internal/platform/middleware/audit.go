package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/auth"
)

// AuditEntry represents an audit log entry produced by the middleware.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	EntityType string
	EntityID   string
	Action     string // create, update, delete, login, logout, ...
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. This decouples the middleware from
// the audit log table so that tests can provide a mock implementation.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit returns Echo middleware that records every state-changing request
// made through the portal: gateway API writes, dashboard actions and the
// auth forms. Reads are not audited. Failed recordings are logged and never
// fail the request.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditable(req.Method, path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
			}

			// Inner middleware may have replaced the request context.
			ctx := c.Request().Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.EntityType, entry.EntityID = extractEntity(path)
			entry.Action = actionFor(req.Method, path)

			// Only successful writes reach the audit table.
			if recorder != nil && err == nil && entry.StatusCode < http.StatusBadRequest {
				if recErr := recorder.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("entity_type", entry.EntityType).
				Str("entity_id", entry.EntityID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("portal_write")

			return err
		}
	}
}

var authFormPaths = map[string]string{
	"/login":           "login",
	"/logout":          "logout",
	"/register":        "register",
	"/forgot-password": "password_reset",
}

func isAuditable(method, path string) bool {
	if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
		return false
	}
	if _, ok := authFormPaths[path]; ok {
		return true
	}
	return strings.HasPrefix(path, "/api/v1/") || strings.HasPrefix(path, "/dashboard/actions/")
}

// actionFor maps a request to an audit action name.
func actionFor(method, path string) string {
	if a, ok := authFormPaths[path]; ok {
		return a
	}
	if strings.HasPrefix(path, "/dashboard/actions/") {
		return strings.TrimPrefix(path, "/dashboard/actions/")
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// extractEntity parses the entity type and id from a URL path.
//
// Supported patterns:
//   - /api/v1/appointments          -> appointments, ""
//   - /api/v1/appointments/<id>     -> appointments, <id>
//   - /api/v1/rooms/<id>/status     -> rooms, <id>
//   - /dashboard/actions/<action>   -> dashboard, ""
//   - /login                        -> session, ""
func extractEntity(path string) (string, string) {
	if _, ok := authFormPaths[path]; ok {
		return "session", ""
	}
	if strings.HasPrefix(path, "/dashboard/actions/") {
		return "dashboard", ""
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	entityType := "unknown"
	if len(segments) > 0 && segments[0] != "" {
		entityType = segments[0]
	}
	if len(segments) > 1 && isUUIDLike(segments[1]) {
		return entityType, segments[1]
	}
	return entityType, ""
}

// isUUIDLike checks if a string looks like a UUID (basic length/format check).
func isUUIDLike(s string) bool {
	if len(s) < 1 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
