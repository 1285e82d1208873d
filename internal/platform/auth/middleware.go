package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated staff member behind a request.
type Principal struct {
	StaffID uuid.UUID
	Role    string
	Name    string
}

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	Skipper    func(echo.Context) bool
}

func (cfg JWTConfig) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, err
	}
	return claims, nil
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := cfg.parse(parts[1])
			if err != nil || claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			staffID, err := uuid.Parse(claims.Subject)
			if err != nil || !IsKnownRole(claims.Role) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			setPrincipal(c, Principal{StaffID: staffID, Role: claims.Role, Name: claims.Name})
			return next(c)
		}
	}
}

// Development headers accepted by DevAuthMiddleware in place of a token.
const (
	DevStaffHeader = "X-Dev-Staff-ID"
	DevRoleHeader  = "X-Dev-Role"
)

// DevAuthMiddleware is a permissive middleware for development. Requests
// carrying a bearer token are validated as usual; requests without one act
// as the staff member named by the X-Dev-* headers, defaulting to an admin
// with a nil id.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	jwtMW := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := jwtMW(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return withToken(c)
			}
			p := Principal{Role: RoleAdmin, Name: "dev-user"}
			if id, err := uuid.Parse(c.Request().Header.Get(DevStaffHeader)); err == nil {
				p.StaffID = id
			}
			if role := c.Request().Header.Get(DevRoleHeader); IsKnownRole(role) {
				p.Role = role
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

func setPrincipal(c echo.Context, p Principal) {
	c.Set("staff_id", p.StaffID.String())
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func RoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}
