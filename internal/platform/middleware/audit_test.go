package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/auth"
)

type captureRecorder struct {
	entries []AuditEntry
	err     error
}

func (r *captureRecorder) RecordAccess(_ context.Context, entry AuditEntry) error {
	r.entries = append(r.entries, entry)
	return r.err
}

func runAudit(t *testing.T, method, path string, rec AuditRecorder, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-123")
	return Audit(zerolog.New(io.Discard), rec)(handler)(c)
}

func TestAudit_RecordsWrite(t *testing.T) {
	rec := &captureRecorder{}
	id := "5d1f6b7e-59b5-4c1c-9c8e-8f2a0b3c4d5e"
	err := runAudit(t, http.MethodPut, "/api/v1/appointments/"+id+"/status", rec, func(c echo.Context) error {
		ctx := auth.WithUser(c.Request().Context(), "user-1", "d@example.com", []string{"doctor"})
		c.SetRequest(c.Request().WithContext(ctx))
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(rec.entries))
	}
	got := rec.entries[0]
	if got.EntityType != "appointments" || got.EntityID != id {
		t.Errorf("unexpected entity %s/%s", got.EntityType, got.EntityID)
	}
	if got.Action != "update" {
		t.Errorf("expected update, got %s", got.Action)
	}
	if got.UserID != "user-1" {
		t.Errorf("expected user id from inner context, got %q", got.UserID)
	}
	if got.RequestID != "req-123" {
		t.Errorf("expected request id, got %q", got.RequestID)
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	rec := &captureRecorder{}
	err := runAudit(t, http.MethodGet, "/api/v1/appointments", rec, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.entries) != 0 {
		t.Errorf("expected reads not to be recorded, got %d", len(rec.entries))
	}
}

func TestAudit_SkipsFailedWrites(t *testing.T) {
	rec := &captureRecorder{}
	_ = runAudit(t, http.MethodPost, "/dashboard/actions/pay-payment", rec, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "nope")
	})
	if len(rec.entries) != 0 {
		t.Errorf("expected failed write not to be recorded, got %d", len(rec.entries))
	}
}

func TestAudit_DashboardActionName(t *testing.T) {
	rec := &captureRecorder{}
	err := runAudit(t, http.MethodPost, "/dashboard/actions/pay-payment", rec, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != "pay-payment" || rec.entries[0].EntityType != "dashboard" {
		t.Errorf("unexpected entries: %+v", rec.entries)
	}
}

func TestAudit_RecorderErrorDoesNotFailRequest(t *testing.T) {
	rec := &captureRecorder{err: errors.New("db down")}
	err := runAudit(t, http.MethodPost, "/login", rec, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("expected request to succeed, got %v", err)
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != "login" {
		t.Errorf("unexpected entries: %+v", rec.entries)
	}
}

func TestExtractEntity(t *testing.T) {
	tests := []struct {
		path     string
		wantType string
		wantID   string
	}{
		{"/api/v1/rooms", "rooms", ""},
		{"/api/v1/rooms/not-a-uuid", "rooms", ""},
		{"/api/v1/payments/5d1f6b7e-59b5-4c1c-9c8e-8f2a0b3c4d5e", "payments", "5d1f6b7e-59b5-4c1c-9c8e-8f2a0b3c4d5e"},
		{"/logout", "session", ""},
		{"/dashboard/actions/book-room", "dashboard", ""},
	}
	for _, tt := range tests {
		gotType, gotID := extractEntity(tt.path)
		if gotType != tt.wantType || gotID != tt.wantID {
			t.Errorf("extractEntity(%q) = %q, %q; want %q, %q", tt.path, gotType, gotID, tt.wantType, tt.wantID)
		}
	}
}
