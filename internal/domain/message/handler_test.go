package message

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

func asUser(req *http.Request, id uuid.UUID) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), id.String(), "", []string{"patient"}))
}

func TestHandler_Send_SenderIsCaller(t *testing.T) {
	svc, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	me := uuid.New()
	body := `{"sender_id":"` + uuid.New().String() + `","recipient_id":"` + uuid.New().String() +
		`","subject":"Refill","content":"Please renew my prescription","priority":"high"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body)), me)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Send(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Message
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.SenderID != me || got.Priority != PriorityHigh {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestHandler_MarkRead_OnlyRecipient(t *testing.T) {
	svc, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	sender, recipient := uuid.New(), uuid.New()
	m := send(t, svc, sender, recipient)

	req := asUser(httptest.NewRequest(http.MethodPatch, "/", nil), sender)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	err := h.MarkRead(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}

	req = asUser(httptest.NewRequest(http.MethodPatch, "/", nil), recipient)
	rec := httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.MarkRead(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Message
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.IsRead {
		t.Error("expected message read")
	}
}

func TestHandler_List_Unread(t *testing.T) {
	svc, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	me := uuid.New()
	send(t, svc, uuid.New(), me)
	send(t, svc, me, uuid.New())

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/messages?unread=true", nil), me)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []Message
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 || got[0].RecipientID != me {
		t.Errorf("unexpected messages %+v", got)
	}
}
