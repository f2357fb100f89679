package capsules

import (
	"context"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"
)

// Repository stores capsules together with their group members and media
// rows. Loaded capsules always carry both. Writes that touch several tables
// should run inside a transaction.
type Repository interface {
	Create(ctx context.Context, c *models.Capsule) error
	Get(ctx context.Context, id string) (*models.Capsule, error)
	// ListForUser returns capsules owned by or shared with userID, newest
	// first.
	ListForUser(ctx context.Context, userID string) ([]*models.Capsule, error)
	Update(ctx context.Context, c *models.Capsule) error
	Delete(ctx context.Context, id string) error

	AddMedia(ctx context.Context, m *models.Media) error
	GetMedia(ctx context.Context, mediaID string) (*models.Media, error)
	DeleteMedia(ctx context.Context, capsuleID, mediaID string) error

	// DueForReminder returns capsules unlocking in (from, to] that have not
	// been reminded about yet.
	DueForReminder(ctx context.Context, from, to time.Time) ([]*models.Capsule, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}
