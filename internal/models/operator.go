package models

import "time"

// Operator is an account allowed to use the control API.
type Operator struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignIn   *time.Time `json:"last_sign_in,omitempty"`
}
