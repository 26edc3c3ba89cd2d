// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists refresh tokens.
//
// Only live tokens (expiring strictly after now) are visible to Find,
// FindNewest and CountForUser; an expired token is indistinguishable from
// a missing one.
type Repository interface {
	// Create stores token for userID. A token collision returns
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, userID int64, token string, expires time.Time) error

	// Find returns the live token row matching both token and userID, or
	// common.ErrorNotFound.
	Find(ctx context.Context, token string, userID int64, now time.Time) (*models.RefreshToken, error)

	// FindNewest returns the live token of userID with the latest expiration,
	// ties broken by the most recent insertion, or common.ErrorNotFound.
	FindNewest(ctx context.Context, userID int64, now time.Time) (*models.RefreshToken, error)

	// CountForUser returns how many live tokens userID has.
	CountForUser(ctx context.Context, userID int64, now time.Time) (int64, error)

	// DeleteForUser removes every token of userID, live or not.
	DeleteForUser(ctx context.Context, userID int64) error

	// PurgeExpired removes all tokens that expired at or before now and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
