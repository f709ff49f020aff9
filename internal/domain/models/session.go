package models

// Session is the signed-in identity passed explicitly to every owner-scoped component.
// The zero value means signed out.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// SignedIn reports whether the session carries an identity.
func (s Session) SignedIn() bool {
	return s.UserID != ""
}

// Owns reports whether ownerID is the session's identity. A signed-out session owns nothing.
func (s Session) Owns(ownerID string) bool {
	return s.SignedIn() && ownerID == s.UserID
}
