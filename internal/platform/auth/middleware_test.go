package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	tokenStr, err := SignToken(key, claims)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)
	err := h(c)

	if err == nil {
		t.Fatal("expected error for missing header")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := NewClaims("portal", "0b9d1c1e-4e55-4a53-9f5c-6a6b0f5b3f11", "doc@example.com", time.Hour)
	token := createTestToken(t, claims, testSigningKey)

	resolver := RoleResolverFunc(func(_ context.Context, userID string) ([]string, error) {
		if userID != claims.Subject {
			t.Errorf("resolver got %s", userID)
		}
		return []string{"doctor"}, nil
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID, gotEmail string
	var gotRoles []string
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Roles: resolver})(func(c echo.Context) error {
		ctx := c.Request().Context()
		gotID = UserIDFromContext(ctx)
		gotEmail = EmailFromContext(ctx)
		gotRoles = RolesFromContext(ctx)
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != claims.Subject {
		t.Errorf("expected subject %s, got %s", claims.Subject, gotID)
	}
	if gotEmail != "doc@example.com" {
		t.Errorf("expected email, got %s", gotEmail)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "doctor" {
		t.Errorf("expected [doctor], got %v", gotRoles)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := NewClaims("portal", "user-1", "a@b.c", -time.Minute)
	token := createTestToken(t, claims, testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	claims := NewClaims("portal", "user-1", "a@b.c", time.Hour)
	token := createTestToken(t, claims, []byte("another-key"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c); err == nil {
		t.Fatal("expected error for token signed with another key")
	}
}

func TestJWTMiddleware_ResolverError(t *testing.T) {
	claims := NewClaims("portal", "user-1", "a@b.c", time.Hour)
	token := createTestToken(t, claims, testSigningKey)
	resolver := RoleResolverFunc(func(context.Context, string) ([]string, error) {
		return nil, errors.New("no profile")
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Roles: resolver})(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestParseToken_IssuerMismatch(t *testing.T) {
	claims := NewClaims("someone-else", "user-1", "a@b.c", time.Hour)
	token := createTestToken(t, claims, testSigningKey)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "portal"})(okHandler)(c); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestUserUUIDFromContext(t *testing.T) {
	id := "0b9d1c1e-4e55-4a53-9f5c-6a6b0f5b3f11"
	got, ok := UserUUIDFromContext(WithUser(context.Background(), id, "", nil))
	if !ok || got.String() != id {
		t.Errorf("expected %s, got %s (%v)", id, got, ok)
	}
	if _, ok := UserUUIDFromContext(WithUser(context.Background(), "not-a-uuid", "", nil)); ok {
		t.Error("expected invalid id to be rejected")
	}
	if _, ok := UserUUIDFromContext(context.Background()); ok {
		t.Error("expected anonymous context to be rejected")
	}
}
