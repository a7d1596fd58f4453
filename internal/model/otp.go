package model

import "time"

// OTPRecord is a password-reset code held in redis, one per email.
type OTPRecord struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the code is past its expiry at now.
func (r OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
