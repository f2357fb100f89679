package users

import (
	"context"

	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"
)

// Repository stores user accounts. Emails are stored and looked up as given;
// callers normalize them. Lookups of absent users return common.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, id string, hash string) error
}
