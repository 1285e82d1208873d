package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssueToken mints an HS256 bearer token for a staff member.
func IssueToken(cfg JWTConfig, p Principal, ttl time.Duration) (string, error) {
	if len(cfg.SigningKey) == 0 {
		return "", errors.New("signing key is required")
	}
	if !IsKnownRole(p.Role) {
		return "", errors.New("unknown role: " + p.Role)
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.StaffID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: p.Role,
		Name: p.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}
