// Package dashboard implements the four role dashboards: the data each one
// loads, the statistics derived from it, its section views and the
// mutations it offers.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/session"
	"github.com/healthportal/portal/internal/shell"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrNotMounted     = errors.New("dashboard not mounted")
)

// Dashboard is one role's dashboard bound to a signed-in user.
type Dashboard interface {
	Role() profile.Role
	// Mount loads every dataset the first time it is called.
	Mount(ctx context.Context) error
	// Reload loads every dataset again.
	Reload(ctx context.Context) error
	View(section shell.Section, q Query) (any, error)
	Apply(ctx context.Context, a Action) Result
}

// Deps are the gateways a dashboard reads from and writes to.
type Deps struct {
	Profiles      Profiles
	Appointments  Appointments
	Records       Records
	Rooms         Rooms
	Payments      Payments
	Messages      Messages
	NurseRequests NurseRequests
	AuditLogs     AuditLogs
	Self          SelfProfile
	Logger        zerolog.Logger
	Now           func() time.Time
}

// Action is a mutation request. Payload holds the action's JSON input.
type Action struct {
	Name    string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (a Action) decode(v any) error {
	if len(a.Payload) == 0 {
		return apperr.Validation("%s: missing payload", a.Name)
	}
	if err := json.Unmarshal(a.Payload, v); err != nil {
		return apperr.Validation("%s: invalid payload: %v", a.Name, err)
	}
	return nil
}

// Result is the outcome of an Action. A failed action leaves the dashboard
// state as it was.
type Result struct {
	OK     bool   `json:"ok"`
	Entity any    `json:"entity,omitempty"`
	Error  string `json:"error,omitempty"`
}

func Ok(entity any) Result { return Result{OK: true, Entity: entity} }

func Fail(err error) Result { return Result{Error: err.Error()} }

// Constructor builds the dashboard of one role.
type Constructor func(user *session.User, deps Deps) Dashboard

var registry = [...]Constructor{
	func(u *session.User, d Deps) Dashboard { return NewPatient(u, d) },
	func(u *session.User, d Deps) Dashboard { return NewDoctor(u, d) },
	func(u *session.User, d Deps) Dashboard { return NewNurse(u, d) },
	func(u *session.User, d Deps) Dashboard { return NewAdmin(u, d) },
}

// Every role has exactly one dashboard.
var (
	_ [len(registry) - profile.RoleCount]struct{}
	_ [profile.RoleCount - len(registry)]struct{}
)

// For returns the constructor of role's dashboard.
func For(role profile.Role) (Constructor, error) {
	i := role.Index()
	if i < 0 {
		return nil, apperr.Validation("no dashboard for role %q", role)
	}
	return registry[i], nil
}

// New builds the dashboard matching the user's role.
func New(user *session.User, deps Deps) (Dashboard, error) {
	ctor, err := For(user.Role())
	if err != nil {
		return nil, err
	}
	return ctor(user, deps), nil
}

// base carries what every dashboard shares: the user, the inbox and the
// profile and settings sections.
type base struct {
	deps   Deps
	logger zerolog.Logger

	mu       sync.RWMutex
	user     *session.User
	mounted  bool
	messages []*message.Message
}

func (b *base) init(user *session.User, deps Deps, role profile.Role) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	b.deps = deps
	b.logger = deps.Logger.With().Str("dashboard", string(role)).Str("user_id", user.Identity.ID.String()).Logger()
	b.user = user
	b.messages = []*message.Message{}
}

func (b *base) me() uuid.UUID { return b.user.Identity.ID }

func (b *base) now() time.Time { return b.deps.Now() }

// mount runs load unless it already ran. Loading always succeeds because
// list reads degrade to empty lists.
func (b *base) mount(ctx context.Context, load func(context.Context) error) error {
	b.mu.RLock()
	mounted := b.mounted
	b.mu.RUnlock()
	if mounted {
		return nil
	}
	return b.reload(ctx, load)
}

func (b *base) reload(ctx context.Context, load func(context.Context) error) error {
	start := time.Now()
	if err := load(ctx); err != nil {
		return fmt.Errorf("load %s dashboard: %w", b.user.Role(), err)
	}
	b.mu.Lock()
	b.mounted = true
	b.mu.Unlock()
	b.logger.Debug().Dur("took", time.Since(start)).Msg("dashboard loaded")
	return nil
}

func (b *base) checkMounted() error {
	if !b.mounted {
		return ErrNotMounted
	}
	return nil
}

func (b *base) unreadMessages() int {
	n := 0
	for _, m := range b.messages {
		if m.UnreadBy(b.me()) {
			n++
		}
	}
	return n
}

// Settings is the view model of the settings section.
type Settings struct {
	Email string       `json:"email"`
	Role  profile.Role `json:"role"`
}

// viewShared renders the sections every role has. Callers hold b.mu.
func (b *base) viewShared(section shell.Section, q Query) (any, bool) {
	switch section {
	case shell.SectionMessages:
		return filterMessages(b.messages, q), true
	case shell.SectionProfile:
		p := *b.user.Profile
		return &p, true
	case shell.SectionSettings:
		return Settings{Email: b.user.Identity.Email, Role: b.user.Role()}, true
	}
	return nil, false
}

// applyShared runs the actions every role has. The bool is false for any
// other action.
func (b *base) applyShared(ctx context.Context, a Action) (Result, bool) {
	switch a.Name {
	case "send-message":
		return b.sendMessage(ctx, a), true
	case "mark-message-read":
		return b.markMessageRead(ctx, a), true
	case "update-profile":
		return b.updateProfile(ctx, a), true
	}
	return Result{}, false
}

type sendMessageInput struct {
	RecipientID uuid.UUID        `json:"recipient_id"`
	Subject     string           `json:"subject"`
	Content     string           `json:"content"`
	Priority    message.Priority `json:"priority"`
}

func (b *base) sendMessage(ctx context.Context, a Action) Result {
	var in sendMessageInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	sent, err := b.deps.Messages.Send(ctx, &message.Message{
		SenderID:    b.me(),
		RecipientID: in.RecipientID,
		Subject:     in.Subject,
		Content:     in.Content,
		Priority:    in.Priority,
	})
	if err != nil {
		return Fail(err)
	}
	b.mu.Lock()
	b.messages = append([]*message.Message{sent}, b.messages...)
	b.mu.Unlock()
	return Ok(sent)
}

type idInput struct {
	ID uuid.UUID `json:"id"`
}

func (b *base) markMessageRead(ctx context.Context, a Action) Result {
	var in idInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	b.mu.RLock()
	i := indexOf(b.messages, func(m *message.Message) bool { return m.ID == in.ID })
	mine := i >= 0 && b.messages[i].RecipientID == b.me()
	b.mu.RUnlock()
	if !mine {
		return Fail(apperr.NotFound("message"))
	}

	updated, err := b.deps.Messages.MarkRead(ctx, in.ID)
	if err != nil {
		return Fail(err)
	}
	b.mu.Lock()
	replaceByID(b.messages, updated, func(m *message.Message) bool { return m.ID == updated.ID })
	b.mu.Unlock()
	return Ok(updated)
}

func (b *base) updateProfile(ctx context.Context, a Action) Result {
	var patch profile.Patch
	if err := a.decode(&patch); err != nil {
		return Fail(err)
	}
	if b.deps.Self == nil {
		return Fail(session.ErrNoUser)
	}
	updated, err := b.deps.Self.UpdateProfile(ctx, patch)
	if err != nil {
		return Fail(err)
	}
	b.mu.Lock()
	u := *b.user
	u.Profile = updated
	b.user = &u
	b.mu.Unlock()
	return Ok(updated)
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, it := range items {
		if match(it) {
			return i
		}
	}
	return -1
}

// replaceByID swaps the first matching element for v in place.
func replaceByID[T any](items []T, v T, match func(T) bool) {
	if i := indexOf(items, match); i >= 0 {
		items[i] = v
	}
}

func removeAt[T any](items []T, match func(T) bool) []T {
	i := indexOf(items, match)
	if i < 0 {
		return items
	}
	return append(items[:i:i], items[i+1:]...)
}

const dateLayout = "2006-01-02"

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, apperr.Required(field)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

// requireDoctor fails unless id names an active doctor profile.
func requireDoctor(ctx context.Context, profiles Profiles, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.Required("doctor_id")
	}
	doc, err := profiles.GetDoctor(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return profile.ErrDoctorNotFound
	case err != nil:
		return err
	case !doc.IsActive:
		return profile.ErrDoctorNotFound
	}
	return nil
}
