package models

import "time"

// SessionRecord is the server-side marker of an active login, stored in
// Redis keyed by user ID. Its TTL never exceeds the refresh token's
// validity window; natural expiry substitutes for a reaper.
type SessionRecord struct {
	UserID         string    `json:"user_id"`
	RefreshTokenID string    `json:"refresh_token_id"`
	Fingerprint    string    `json:"fingerprint"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
