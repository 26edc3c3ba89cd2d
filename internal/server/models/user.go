// Package models holds the server-side records persisted by the repositories.
package models

import "time"

// User is an account. PasswordHash is an encoded argon2id hash, never the
// plaintext. IsBlocked is set by an administrator outside this service.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsBlocked    bool
	CreatedAt    time.Time
}
