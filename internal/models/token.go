package models

import "time"

// RefreshToken is a refresh session held in memory by the auth service.
// Sessions do not survive a restart; clients re-authenticate.
type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

// Expired reports whether the session has passed its deadline.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
