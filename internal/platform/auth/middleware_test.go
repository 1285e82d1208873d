package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(subject, role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
		Name: "Asha Rao",
	}
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (*Principal, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Principal
	err := mw(func(c echo.Context) error {
		if p, ok := PrincipalFromContext(c.Request().Context()); ok {
			got = &p
		}
		return c.String(http.StatusOK, "ok")
	})(c)
	return got, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	expectStatus(t, err, http.StatusUnauthorized)
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
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	id := uuid.New()
	tokenStr := createTestToken(t, validClaims(id.String(), RoleDoctor), testSigningKey)

	p, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("principal was not set")
	}
	if p.StaffID != id {
		t.Errorf("expected staff id %s, got %s", id, p.StaffID)
	}
	if p.Role != RoleDoctor {
		t.Errorf("expected role doctor, got %s", p.Role)
	}
	if p.Name != "Asha Rao" {
		t.Errorf("expected name Asha Rao, got %s", p.Name)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims(uuid.NewString(), RoleNurse)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	tokenStr := createTestToken(t, claims, testSigningKey)

	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(uuid.NewString(), RoleNurse), []byte("another-key-another-key-another-key"))
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_BadSubjectOrRole(t *testing.T) {
	for _, claims := range []Claims{
		validClaims("user-123", RoleNurse),
		validClaims(uuid.NewString(), "physician"),
	} {
		tokenStr := createTestToken(t, claims, testSigningKey)
		_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr)
		expectStatus(t, err, http.StatusUnauthorized)
	}
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := validClaims(uuid.NewString(), RoleNurse)
	claims.Issuer = "someone-else"
	tokenStr := createTestToken(t, claims, testSigningKey)

	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "triage"}
	_, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+tokenStr)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestIssueToken_RoundTrip(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "triage"}
	want := Principal{StaffID: uuid.New(), Role: RoleNurse, Name: "Meera"}
	tokenStr, err := IssueToken(cfg, want, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	got, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+tokenStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	if _, err := IssueToken(JWTConfig{}, Principal{Role: RoleNurse}, time.Hour); err == nil {
		t.Error("expected error without signing key")
	}
	if _, err := IssueToken(JWTConfig{SigningKey: testSigningKey}, Principal{Role: "janitor"}, time.Hour); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevStaffHeader, id.String())
	req.Header.Set(DevRoleHeader, RoleNurse)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Principal
	err := DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error {
		got, _ = PrincipalFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StaffID != id || got.Role != RoleNurse {
		t.Errorf("unexpected principal %+v", got)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	p, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Role != RoleAdmin {
		t.Errorf("expected admin principal, got %+v", p)
	}
}

func TestDevAuthMiddleware_ValidatesTokens(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer garbage")
	expectStatus(t, err, http.StatusUnauthorized)
}
