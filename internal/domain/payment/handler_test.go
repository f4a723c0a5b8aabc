package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/auth"
)

func payRequest(t *testing.T, h *Handler, caller, id uuid.UUID) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment_method":"insurance"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithUser(req.Context(), caller.String(), "", []string{"patient"}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	return rec, h.Pay(c)
}

func TestHandler_Pay(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	patient := uuid.New()
	p := bill(t, svc, patient, 50)

	rec, err := payRequest(t, h, patient, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Payment
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusPaid || got.PaidAt == nil {
		t.Errorf("unexpected payment %+v", got)
	}

	// Paying twice is rejected.
	_, err = payRequest(t, h, patient, p.ID)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_Pay_OtherPatient(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	p := bill(t, svc, uuid.New(), 50)

	_, err := payRequest(t, h, uuid.New(), p.ID)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
