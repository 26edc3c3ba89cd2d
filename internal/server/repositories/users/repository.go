// Package users declares the credential store: persistence of user accounts
// keyed by id, email and name.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists users. Lookups of a missing user return
// common.ErrorNotFound; a name or email collision on Create returns
// common.ErrorAlreadyExists.
type Repository interface {
	// Create inserts user and fills in its ID and CreatedAt.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// UpdatePasswordHash replaces the stored hash for the user.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	// Delete removes the user. Refresh tokens are removed by the caller.
	Delete(ctx context.Context, id int64) error

	// Count returns the total number of users.
	Count(ctx context.Context) (int64, error)
}
