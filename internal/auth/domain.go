// Package auth authenticates portal users and manages their sessions.
package auth

import "time"

// User represents a portal user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
