package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims represents the JWT claims issued by the identity provider.
// The shape covers Supabase Auth and Firebase ID tokens; fields a provider does not
// send stay empty.
type IdentityClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"` // "authenticated" or "anon" on Supabase
	SessionID            string `json:"session_id"`
	IsAnonymous          bool   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *IdentityClaims) GetUserID() string {
	return c.Subject
}

// Session returns the explicit session context derived from the claims.
func (c *IdentityClaims) Session() Session {
	return Session{UserID: c.Subject, Email: c.Email}
}
