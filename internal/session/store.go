// Package session holds the signed-in identity and profile of one browser
// session and keeps them current as auth-state events arrive.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/platform/backend"
)

var (
	ErrNoUser          = errors.New("no user logged in")
	ErrDisposed        = errors.New("session store disposed")
	ErrAccountDisabled = errors.New("account is deactivated")
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// AuthClient is the per-session view of the authentication service.
// *backend.Client implements it.
type AuthClient interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*backend.Identity, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email string) error
	NotifyUserUpdated(ctx context.Context, identity *backend.Identity)
	OnAuthStateChange(ctx context.Context, fn func(backend.StateChange)) (unsubscribe func())
	RemoveIdentity(ctx context.Context, identity *backend.Identity) error
}

// Profiles is the subset of the profile gateway the store needs.
// *profile.Service implements it.
type Profiles interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	Create(ctx context.Context, p *profile.Profile) error
	Update(ctx context.Context, id uuid.UUID, patch profile.Patch) (*profile.Profile, error)
}

// User pairs the authentication identity with the application profile.
type User struct {
	Identity backend.Identity `json:"identity"`
	Profile  *profile.Profile `json:"profile"`
}

// Role returns the profile role, or "" when no profile is loaded.
func (u *User) Role() profile.Role {
	if u == nil || u.Profile == nil {
		return ""
	}
	return u.Profile.Role
}

// DisplayName prefers the profile name and falls back to the email.
func (u *User) DisplayName() string {
	if u.Profile != nil && u.Profile.FullName != "" {
		return u.Profile.FullName
	}
	return u.Identity.Email
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Profile != nil {
		p := *u.Profile
		cp.Profile = &p
	}
	return &cp
}

// Snapshot is an immutable copy of the store state.
type Snapshot struct {
	State   State `json:"-"`
	User    *User `json:"user,omitempty"`
	Loading bool  `json:"loading"`
}

func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// RegisterFields are the profile fields collected by the registration form.
type RegisterFields struct {
	FullName        string
	Role            profile.Role
	Phone           *string
	Specialization  *string
	LicenseNumber   *string
	ExperienceYears *int
	Department      *string
}

// Store is the session state of one browser session. It is safe for
// concurrent use.
type Store struct {
	client   AuthClient
	profiles Profiles
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	init   sync.Once

	mu          sync.Mutex
	state       State
	user        *User
	disposed    bool
	registering int
	unlisten    func()
	subs        map[int]func(Snapshot)
	nextSub     int
}

func New(client AuthClient, profiles Profiles, logger zerolog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		client:   client,
		profiles: profiles,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[int]func(Snapshot)),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		State:   s.state,
		User:    s.user.clone(),
		Loading: s.state == StateLoading || s.state == StateUninitialized,
	}
}

// Subscribe registers fn for every later state change.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// set applies a state change unless the store has been disposed, then
// notifies subscribers outside the lock.
func (s *Store) set(state State, user *User) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.user = user
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Initialize resolves the current session once and starts listening for
// auth-state changes. Concurrent callers wait for the first to finish.
// Failures resolve to the anonymous state.
func (s *Store) Initialize(ctx context.Context) {
	s.init.Do(func() {
		s.set(StateLoading, nil)

		user, err := s.loadCurrent(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("session initialization failed")
		}
		if user != nil {
			s.set(StateAuthenticated, user)
		} else {
			s.set(StateAnonymous, nil)
		}

		unlisten := s.client.OnAuthStateChange(s.ctx, s.onAuthStateChange)
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			unlisten()
			return
		}
		s.unlisten = unlisten
		s.mu.Unlock()
	})
}

func (s *Store) loadCurrent(ctx context.Context) (*User, error) {
	sess, err := s.client.GetSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	p, err := s.resolveProfile(ctx, &sess.Identity)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	if !p.IsActive {
		s.signOutDisabled(ctx, sess.Identity.ID)
		return nil, ErrAccountDisabled
	}
	return &User{Identity: sess.Identity, Profile: p}, nil
}

// resolveProfile fetches the profile of identity and creates the default
// one when none exists yet.
func (s *Store) resolveProfile(ctx context.Context, identity *backend.Identity) (*profile.Profile, error) {
	p, err := s.profiles.Get(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	p = defaultProfile(identity)
	if err := s.profiles.Create(ctx, p); err != nil {
		// Another replica may have created it first.
		if existing, getErr := s.profiles.Get(ctx, identity.ID); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", identity.ID.String()).Str("role", string(p.Role)).Msg("created default profile")
	return p, nil
}

// defaultProfile builds the profile of an identity that has none. The role
// recorded at sign-up is honoured unless it is admin or unknown.
func defaultProfile(identity *backend.Identity) *profile.Profile {
	role := profile.Role(identity.MetadataString("role"))
	if !role.Valid() || role == profile.RoleAdmin {
		role = profile.RolePatient
	}
	name := identity.MetadataString("full_name")
	if name == "" {
		name, _, _ = strings.Cut(identity.Email, "@")
	}
	return &profile.Profile{
		ID:       identity.ID,
		Email:    identity.Email,
		FullName: name,
		Role:     role,
		IsActive: true,
	}
}

func (s *Store) onAuthStateChange(change backend.StateChange) {
	s.mu.Lock()
	skip := s.disposed || s.registering > 0
	current := s.user
	s.mu.Unlock()
	if skip || change.Event == backend.EventInitialSession {
		return
	}

	if change.Event == backend.EventSignedOut || change.Identity == nil {
		s.set(StateAnonymous, nil)
		return
	}

	p, err := s.resolveProfile(s.ctx, change.Identity)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", string(change.Event)).Msg("failed to resolve profile")
		if current != nil && current.Identity.ID == change.Identity.ID {
			return
		}
		s.set(StateAnonymous, nil)
		return
	}
	if !p.IsActive {
		s.set(StateAnonymous, nil)
		return
	}
	s.set(StateAuthenticated, &User{Identity: *change.Identity, Profile: p})
}

func (s *Store) checkDisposed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	return nil
}

// Login checks the credentials. The store picks up the new session from the
// resulting SIGNED_IN event.
func (s *Store) Login(ctx context.Context, email, password string) (*backend.Identity, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Required("email")
	}
	if password == "" {
		return nil, apperr.Required("password")
	}
	sess, err := s.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if p, err := s.profiles.Get(ctx, sess.Identity.ID); err == nil && p != nil && !p.IsActive {
		s.signOutDisabled(ctx, sess.Identity.ID)
		return nil, ErrAccountDisabled
	}
	return &sess.Identity, nil
}

// Revalidate re-reads the signed-in user's profile and signs the session
// out when the account was deactivated after sign-in. It returns
// ErrAccountDisabled when it did so.
func (s *Store) Revalidate(ctx context.Context) error {
	s.mu.Lock()
	user := s.user.clone()
	s.mu.Unlock()
	if user == nil {
		return nil
	}
	p, err := s.profiles.Get(ctx, user.Identity.ID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to re-read profile")
		return nil
	}
	if p == nil || p.IsActive {
		return nil
	}
	s.signOutDisabled(ctx, user.Identity.ID)
	return ErrAccountDisabled
}

// signOutDisabled drops the session of a deactivated account.
func (s *Store) signOutDisabled(ctx context.Context, id uuid.UUID) {
	s.logger.Info().Str("user_id", id.String()).Msg("account deactivated, signing out")
	if err := s.client.SignOut(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("remote sign-out failed")
	}
	s.set(StateAnonymous, nil)
}

// Register creates the identity and its profile with the requested role,
// then reads the profile back to confirm the role persisted. When the
// profile cannot be created the identity is removed again if the provider
// allows it; otherwise the next session load creates a default profile.
// A failed read-back keeps the account but clears the new session.
func (s *Store) Register(ctx context.Context, email, password string, fields RegisterFields) (*backend.Identity, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Required("email")
	}
	if password == "" {
		return nil, apperr.Required("password")
	}
	if len(password) < 6 {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	fields.FullName = strings.TrimSpace(fields.FullName)
	if fields.FullName == "" {
		return nil, apperr.Required("full_name")
	}
	if fields.Role == "" {
		fields.Role = profile.RolePatient
	}
	if !fields.Role.Valid() {
		return nil, apperr.Validation("invalid role: %s", fields.Role)
	}
	if fields.Role == profile.RoleAdmin {
		return nil, apperr.Validation("admin accounts are created by administrators")
	}

	// Hold back event-driven profile resolution so it cannot race the
	// explicit create below.
	s.mu.Lock()
	s.registering++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.registering--
		s.mu.Unlock()
	}()

	identity, err := s.client.SignUp(ctx, email, password, map[string]interface{}{
		"full_name": fields.FullName,
		"role":      string(fields.Role),
	})
	if err != nil {
		return nil, err
	}

	p := &profile.Profile{
		ID:              identity.ID,
		Email:           identity.Email,
		FullName:        fields.FullName,
		Role:            fields.Role,
		Phone:           fields.Phone,
		Specialization:  fields.Specialization,
		LicenseNumber:   fields.LicenseNumber,
		ExperienceYears: fields.ExperienceYears,
		Department:      fields.Department,
	}
	if p.Email == "" {
		p.Email = email
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		s.rollback(ctx, identity, err)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	stored, err := s.profiles.Get(ctx, identity.ID)
	if err != nil {
		s.abandonSignUp(ctx)
		return nil, fmt.Errorf("read back profile: %w", err)
	}
	if stored == nil || stored.Role != fields.Role {
		s.abandonSignUp(ctx)
		return nil, fmt.Errorf("profile role did not persist as %s", fields.Role)
	}

	// Sign-up signs the session in unless email confirmation is pending.
	if sess, err := s.client.GetSession(ctx); err == nil && sess != nil && sess.Identity.ID == identity.ID {
		s.set(StateAuthenticated, &User{Identity: sess.Identity, Profile: stored})
	}
	return identity, nil
}

// abandonSignUp clears the session a sign-up started when its profile could
// not be confirmed. The account stays and can sign in later.
func (s *Store) abandonSignUp(ctx context.Context) {
	if err := s.client.SignOut(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear sign-up session")
	}
	s.set(StateAnonymous, nil)
}

func (s *Store) rollback(ctx context.Context, identity *backend.Identity, cause error) {
	log := s.logger.With().Str("user_id", identity.ID.String()).Logger()
	err := s.client.RemoveIdentity(ctx, identity)
	switch {
	case err == nil:
		log.Warn().Err(cause).Msg("profile creation failed, identity removed")
	case errors.Is(err, backend.ErrRemovalUnsupported):
		log.Warn().Err(cause).Msg("profile creation failed, default profile will be created on next sign-in")
	default:
		log.Error().Err(err).AnErr("cause", cause).Msg("failed to remove identity after profile creation failed")
	}
}

// Logout signs out remotely and always clears the local user.
func (s *Store) Logout(ctx context.Context) error {
	err := s.client.SignOut(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("remote sign-out failed")
	}
	s.set(StateAnonymous, nil)
	return err
}

// UpdateProfile patches the signed-in user's own profile. Role and
// activation cannot be changed this way.
func (s *Store) UpdateProfile(ctx context.Context, patch profile.Patch) (*profile.Profile, error) {
	s.mu.Lock()
	user := s.user.clone()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return nil, ErrDisposed
	}
	if user == nil {
		return nil, ErrNoUser
	}

	patch.Role = nil
	patch.IsActive = nil
	updated, err := s.profiles.Update(ctx, user.Identity.ID, patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	same := s.user != nil && s.user.Identity.ID == user.Identity.ID
	s.mu.Unlock()
	if same {
		s.set(StateAuthenticated, &User{Identity: user.Identity, Profile: updated})
	}
	s.client.NotifyUserUpdated(ctx, &user.Identity)
	return updated, nil
}

// ForgotPassword asks the service to email a reset link.
func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	if err := s.checkDisposed(); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Required("email")
	}
	return s.client.ResetPasswordForEmail(ctx, email)
}

// Dispose stops the auth-state listener and drops all subscribers. Later
// state changes are ignored. Dispose is idempotent.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	unlisten := s.unlisten
	s.unlisten = nil
	s.subs = map[int]func(Snapshot){}
	s.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	s.cancel()
}
