package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleNurse  = "nurse"
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
)

func IsKnownRole(role string) bool {
	switch role {
	case RoleNurse, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// RequireRole returns middleware that checks if the caller has one of the
// specified roles. Admins are not implicitly allowed: clinical transitions
// are bound to the acting nurse or doctor.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			has := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if has == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
