package domain

import "time"

// TokenPair is what session issuance returns: the short-lived signed access
// token (JWT) and the opaque single-use refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access token lifetime
}

// RefreshToken models the stored refresh token record. The raw opaque value
// is never stored; TokenHash is its SHA-256 fingerprint.
//
// State machine: Active -> Used (successful validation), Active -> Revoked
// (explicit invalidation or rotation), Active -> Expired (lazy, checked at
// validation time). All terminal.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	Used      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
