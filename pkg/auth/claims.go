package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// AccessTokenPayload is what the auth service knows when it mints a token.
// JTI is generated when empty.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

func (p AccessTokenPayload) jti() string {
	if id := strings.TrimSpace(p.JTI); id != "" {
		return id
	}
	return uuid.NewString()
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
