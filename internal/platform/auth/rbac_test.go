package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func contextWithRole(role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{StaffID: uuid.New(), Role: role}))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequireRole_Allowed(t *testing.T) {
	c, _ := contextWithRole(RoleDoctor)
	called := false
	err := RequireRole(RoleNurse, RoleDoctor)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := contextWithRole(RoleNurse)
	err := RequireRole(RoleDoctor)(func(c echo.Context) error { return nil })(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_NoAdminBypass(t *testing.T) {
	c, _ := contextWithRole(RoleAdmin)
	err := RequireRole(RoleDoctor)(func(c echo.Context) error { return nil })(c)
	if err == nil {
		t.Fatal("admin must not pass a doctor-only route")
	}
}

func TestRequireRole_Anonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := RequireRole(RoleNurse)(func(c echo.Context) error { return nil })(c); err == nil {
		t.Fatal("expected error without principal")
	}
}

func TestIsKnownRole(t *testing.T) {
	for _, r := range []string{RoleNurse, RoleDoctor, RoleAdmin} {
		if !IsKnownRole(r) {
			t.Errorf("expected %s to be known", r)
		}
	}
	if IsKnownRole("physician") {
		t.Error("physician is not a staff role here")
	}
}
