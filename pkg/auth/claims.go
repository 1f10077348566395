package auth

import (
	"strings"

	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// Actor is the authenticated caller handed to every refund operation.
type Actor struct {
	Subject string
	Email   string
	Role    enums.ActorRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// Owns reports whether email belongs to the actor. Emails are compared
// case-insensitively.
func (a Actor) Owns(email string) bool {
	actor := NormalizeEmail(a.Email)
	return actor != "" && actor == NormalizeEmail(email)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject string
	Email   string
	Role    enums.ActorRole
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	Email string          `json:"email"`
	Role  enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the actor used by services.
func (c *AccessTokenClaims) Actor() Actor {
	return Actor{
		Subject: c.Subject,
		Email:   NormalizeEmail(c.Email),
		Role:    c.Role,
	}
}
