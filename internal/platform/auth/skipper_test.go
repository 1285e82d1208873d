package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		path string
		skip bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/api/v1/patients", false},
		{"/api/v1/triage-cases", false},
		{"/metrics", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), httptest.NewRecorder())
			c.SetPath(tt.path)
			if got := AuthSkipper(c); got != tt.skip {
				t.Errorf("AuthSkipper(%s) = %v, want %v", tt.path, got, tt.skip)
			}
			if got := IsPublicPath(tt.path); got != tt.skip {
				t.Errorf("IsPublicPath(%s) = %v, want %v", tt.path, got, tt.skip)
			}
		})
	}
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), httptest.NewRecorder())
	c.SetPath("/health")

	called := false
	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper})(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("public path should reach the handler without a token")
	}
}
