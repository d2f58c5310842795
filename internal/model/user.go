package model

import "time"

type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	Salt           string     `json:"-"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Email          string     `json:"email"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// LockState is the brute-force bookkeeping slice of a User.
type LockState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// Locked reports whether a lock expiry exists and is strictly after now.
func (l LockState) Locked(now time.Time) bool {
	return l.LockedUntil != nil && l.LockedUntil.After(now)
}

// VerificationCode is the single pending second-factor code for a username.
// CodeHash holds a bcrypt digest of the six digits, never the digits.
type VerificationCode struct {
	Username  string    `json:"username"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"` // wrong submissions against this code
}

type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
