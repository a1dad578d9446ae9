// Package repository declares the storage interfaces the services depend on.
// Implementations live in the sqlite and postgres subpackages.
package repository

import (
	"context"

	"github.com/sakif/recipe-api/internal/model"
)

// UserRepository is the credential store.
//
// Contract shared by every implementation:
//   - lookups return an error wrapping apperror.ErrNotFound when no row matches
//   - Create fills in ID, CreatedAt and UpdatedAt
//   - Create and Update return an error wrapping apperror.ErrConflict when a
//     unique column (email, google_id) is already taken; this is the
//     authoritative duplicate check, a prior lookup is only a fast path
//   - emails are passed in already normalized (model.NormalizeEmail)
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}
