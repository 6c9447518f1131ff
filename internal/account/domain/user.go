package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2 encoded

	// TwoFactorSecret is the base32 TOTP secret (nullable). The invariant is
	// that it is set exactly when TwoFactorEnabled is set: disabling clears
	// both.
	TwoFactorSecret  *string
	TwoFactorEnabled *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TwoFactorActive reports whether a second factor guards this account.
func (u User) TwoFactorActive() bool {
	return u.TwoFactorEnabled != nil && u.TwoFactorSecret != nil && *u.TwoFactorSecret != ""
}
