package codes

import (
	"context"

	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"
)

// Repository stores one pending code per email and purpose. Put replaces
// any earlier code; Get returns common.ErrNotFound when none is pending.
type Repository interface {
	Put(ctx context.Context, code *models.Code) error
	Get(ctx context.Context, email, purpose string) (*models.Code, error)
	Delete(ctx context.Context, email, purpose string) error
}
