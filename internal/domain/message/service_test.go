package message

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

// ── Mock Repository ──

type mockRepo struct {
	data    map[uuid.UUID]*Message
	listErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{data: make(map[uuid.UUID]*Message)}
}

func (m *mockRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Message
	for _, msg := range m.data {
		if msg.SenderID == userID || msg.RecipientID == userID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	if msg, ok := m.data[id]; ok {
		cp := *msg
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRepo) Create(_ context.Context, msg *Message) error {
	msg.ID = uuid.New()
	cp := *msg
	m.data[msg.ID] = &cp
	return nil
}

func (m *mockRepo) MarkRead(_ context.Context, id uuid.UUID) (*Message, error) {
	msg, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	msg.IsRead = true
	cp := *msg
	return &cp, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.data, id)
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.New(io.Discard)), repo
}

func send(t *testing.T, svc *Service, from, to uuid.UUID) *Message {
	t.Helper()
	m, err := svc.Send(context.Background(), &Message{
		SenderID: from, RecipientID: to, Subject: "Lab results", Content: "Your results are ready.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return m
}

func TestSend_Defaults(t *testing.T) {
	svc, _ := newTestService()
	m := send(t, svc, uuid.New(), uuid.New())
	if m.Priority != PriorityNormal || m.IsRead {
		t.Errorf("unexpected message %+v", m)
	}
}

func TestSend_Validation(t *testing.T) {
	svc, repo := newTestService()
	self := uuid.New()
	for _, m := range []Message{
		{RecipientID: uuid.New(), Subject: "s", Content: "c"},
		{SenderID: uuid.New(), Subject: "s", Content: "c"},
		{SenderID: self, RecipientID: self, Subject: "s", Content: "c"},
		{SenderID: uuid.New(), RecipientID: uuid.New(), Content: "c"},
		{SenderID: uuid.New(), RecipientID: uuid.New(), Subject: "s", Content: "   "},
		{SenderID: uuid.New(), RecipientID: uuid.New(), Subject: "s", Content: "c", Priority: "meh"},
	} {
		m := m
		if _, err := svc.Send(context.Background(), &m); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error for %+v, got %v", m, err)
		}
	}
	if len(repo.data) != 0 {
		t.Error("expected nothing sent")
	}
}

func TestListForUser_SenderOrRecipient(t *testing.T) {
	svc, _ := newTestService()
	me, other := uuid.New(), uuid.New()
	send(t, svc, me, other)
	send(t, svc, other, me)
	send(t, svc, other, uuid.New())

	got := svc.ListForUser(context.Background(), me)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	unread := 0
	for _, m := range got {
		if m.UnreadBy(me) {
			unread++
		}
	}
	if unread != 1 {
		t.Errorf("expected 1 unread, got %d", unread)
	}
}

func TestMarkRead(t *testing.T) {
	svc, _ := newTestService()
	m := send(t, svc, uuid.New(), uuid.New())
	got, err := svc.MarkRead(context.Background(), m.ID)
	if err != nil || !got.IsRead {
		t.Fatalf("unexpected result %+v, %v", got, err)
	}
	if _, err := svc.MarkRead(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListForUser_FailureIsEmpty(t *testing.T) {
	svc, repo := newTestService()
	repo.listErr = errors.New("down")
	if got := svc.ListForUser(context.Background(), uuid.New()); got == nil || len(got) != 0 {
		t.Errorf("expected empty slice, got %v", got)
	}
}
