package models

import "time"

// RefreshToken is an opaque long-lived session credential owned by a user.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
