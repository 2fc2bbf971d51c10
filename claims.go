package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenUse discriminates access tokens from refresh tokens. The two variants
// share a signing key but carry distinct validity windows, so verification
// must check the discriminant as well as the signature and expiry.
type TokenUse = string

const (
	// TokenUseAccess marks short-lived tokens that authorize API calls.
	TokenUseAccess TokenUse = "access"
	// TokenUseRefresh marks longer-lived tokens used solely to mint new
	// access tokens.
	TokenUseRefresh TokenUse = "refresh"
)

// SessionClaims is the payload of every token this package issues.
type SessionClaims struct {
	jwt.RegisteredClaims
	TokenUse TokenUse `json:"use,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Subject returns the subject claim, the account's stable username (email).
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Use returns the token use discriminant, defaulting to access for tokens
// minted before the discriminant existed.
func (c *SessionClaims) Use() TokenUse {
	if c.TokenUse == "" {
		return TokenUseAccess
	}
	return c.TokenUse
}

// GrantedRoles returns the role names embedded at issuance time.
func (c *SessionClaims) GrantedRoles() []string {
	return c.Roles
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued-at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
