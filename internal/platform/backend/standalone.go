package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthportal/portal/internal/platform/auth"
)

// StoredIdentity is a row of auth_identities.
type StoredIdentity struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	Metadata      map[string]interface{}
	RefreshHash   *string
	RefreshExpiry *time.Time
	CreatedAt     time.Time
}

// PasswordReset is a row of auth_password_resets.
type PasswordReset struct {
	ID          uuid.UUID
	IdentityID  uuid.UUID
	Email       string
	TokenHash   string
	RedirectURL string
	ExpiresAt   time.Time
}

// IdentityStore persists identities for the standalone provider.
type IdentityStore interface {
	Create(ctx context.Context, id *StoredIdentity) error
	GetByEmail(ctx context.Context, email string) (*StoredIdentity, error)
	GetByID(ctx context.Context, id uuid.UUID) (*StoredIdentity, error)
	GetByRefreshHash(ctx context.Context, hash string) (*StoredIdentity, error)
	SetRefresh(ctx context.Context, id uuid.UUID, hash *string, expiry *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateReset(ctx context.Context, r *PasswordReset) error
}

// StandaloneConfig configures the built-in provider.
type StandaloneConfig struct {
	Issuer     string
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	BcryptCost int
}

// StandaloneProvider implements Provider on the portal's own database, for
// deployments without a hosted auth service.
type StandaloneProvider struct {
	store  IdentityStore
	cfg    StandaloneConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewStandaloneProvider(store IdentityStore, cfg StandaloneConfig, logger zerolog.Logger) *StandaloneProvider {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &StandaloneProvider{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "standalone_auth").Logger(),
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (p *StandaloneProvider) identity(row *StoredIdentity) Identity {
	return Identity{ID: row.ID, Email: row.Email, Metadata: row.Metadata}
}

// issue mints an access token and rotates the refresh token of row.
func (p *StandaloneProvider) issue(ctx context.Context, row *StoredIdentity) (*Session, error) {
	now := p.now()
	claims := auth.NewClaims(p.cfg.Issuer, row.ID.String(), row.Email, p.cfg.AccessTTL)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(p.cfg.AccessTTL))
	claims.UserMetadata = row.Metadata
	claims.SessionID = uuid.NewString()

	access, err := auth.SignToken(p.cfg.Secret, claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	hash := hashToken(refresh)
	expiry := now.Add(p.cfg.RefreshTTL)
	if err := p.store.SetRefresh(ctx, row.ID, &hash, &expiry); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    claims.ExpiresAt.Time,
		Identity:     p.identity(row),
	}, nil
}

func (p *StandaloneProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	row, err := p.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issue(ctx, row)
}

func (p *StandaloneProvider) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*Identity, *Session, error) {
	email = normalizeEmail(email)
	existing, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	row := &StoredIdentity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     metadata,
	}
	if err := p.store.Create(ctx, row); err != nil {
		return nil, nil, err
	}

	sess, err := p.issue(ctx, row)
	if err != nil {
		return nil, nil, err
	}
	id := p.identity(row)
	return &id, sess, nil
}

func (p *StandaloneProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := auth.ParseToken(p.cfg.Secret, accessToken)
	if err != nil {
		// Nothing to revoke for an expired or foreign token.
		return nil
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil
	}
	return p.store.SetRefresh(ctx, id, nil, nil)
}

func (p *StandaloneProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrSessionExpired
	}
	row, err := p.store.GetByRefreshHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if row == nil || row.RefreshExpiry == nil || !row.RefreshExpiry.After(p.now()) {
		return nil, ErrSessionExpired
	}
	return p.issue(ctx, row)
}

func (p *StandaloneProvider) User(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := auth.ParseToken(p.cfg.Secret, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}
	row, err := p.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrSessionExpired
	}
	identity := p.identity(row)
	return &identity, nil
}

// ResetPassword records a reset request. Unknown emails succeed silently so
// the endpoint does not reveal which addresses are registered.
func (p *StandaloneProvider) ResetPassword(ctx context.Context, email, redirectURL string) error {
	row, err := p.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	reset := &PasswordReset{
		ID:          uuid.New(),
		IdentityID:  row.ID,
		Email:       row.Email,
		TokenHash:   hashToken(token),
		RedirectURL: redirectURL,
		ExpiresAt:   p.now().Add(p.cfg.ResetTTL),
	}
	if err := p.store.CreateReset(ctx, reset); err != nil {
		return fmt.Errorf("record password reset: %w", err)
	}
	// No mailer is wired in standalone mode; operators relay the link.
	p.logger.Info().
		Str("identity_id", row.ID.String()).
		Str("reset_url", redirectURL+"#token="+token).
		Time("expires_at", reset.ExpiresAt).
		Msg("password reset requested")
	return nil
}

func (p *StandaloneProvider) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	return p.store.Delete(ctx, id)
}
