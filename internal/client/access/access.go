// Package access decides what a viewer may see and do with a capsule at a
// given instant.
//
// The verdict is computed locally from the capsule's unlock time, its owner
// and the current time, so the client never needs a round trip to decide how
// to render or whether to attempt an operation. It is advisory: the server
// enforces the same rules independently.
package access

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/clock"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
)

// Verdict is the outcome of Visibility for one viewer at one instant.
type Verdict struct {
	// Unlocked is true once now >= UnlockAt.
	Unlocked bool

	// FieldsVisible is always true: title and description are transmitted
	// regardless of lock state.
	FieldsVisible bool

	// FieldsObscured marks title and description for obscured rendering
	// while the capsule is locked.
	FieldsObscured bool

	// MediaOperable permits fetching media content.
	MediaOperable bool

	CanDeleteMedia   bool
	CanDeleteCapsule bool
	CanUpload        bool
	CanUpdate        bool

	// Remaining is the countdown at the evaluated instant.
	Remaining clock.Remaining
}

// Visibility computes the verdict for viewerID on c at now. An empty
// viewerID never matches an owner.
func Visibility(c *models.Capsule, viewerID string, now time.Time) Verdict {
	r := clock.Evaluate(c.UnlockAt, now)
	owner := viewerID != "" && viewerID == c.OwnerID
	locked := !r.Unlocked

	return Verdict{
		Unlocked:         r.Unlocked,
		FieldsVisible:    true,
		FieldsObscured:   locked,
		MediaOperable:    r.Unlocked,
		CanDeleteMedia:   owner && locked,
		CanDeleteCapsule: owner,
		CanUpload:        owner && locked,
		CanUpdate:        owner && locked,
		Remaining:        r,
	}
}

// CheckMediaAccess returns ErrCapsuleLocked while media is not operable.
func CheckMediaAccess(c *models.Capsule, viewerID string, now time.Time) error {
	if !Visibility(c, viewerID, now).MediaOperable {
		return fmt.Errorf("capsule %s: %w", c.ID, common.ErrCapsuleLocked)
	}
	return nil
}

// CheckUpload returns ErrForbidden for non-owners and ErrCapsuleUnlocked
// once the capsule has opened.
func CheckUpload(c *models.Capsule, viewerID string, now time.Time) error {
	return checkOwnerLocked(Visibility(c, viewerID, now), c, viewerID)
}

// CheckMediaDelete follows the same rule as CheckUpload.
func CheckMediaDelete(c *models.Capsule, viewerID string, now time.Time) error {
	return checkOwnerLocked(Visibility(c, viewerID, now), c, viewerID)
}

// CheckUpdate follows the same rule as CheckUpload.
func CheckUpdate(c *models.Capsule, viewerID string, now time.Time) error {
	return checkOwnerLocked(Visibility(c, viewerID, now), c, viewerID)
}

// CheckCapsuleDelete returns ErrForbidden for non-owners.
func CheckCapsuleDelete(c *models.Capsule, viewerID string, now time.Time) error {
	if !Visibility(c, viewerID, now).CanDeleteCapsule {
		return fmt.Errorf("capsule %s: %w", c.ID, common.ErrForbidden)
	}
	return nil
}

func checkOwnerLocked(v Verdict, c *models.Capsule, viewerID string) error {
	if viewerID == "" || viewerID != c.OwnerID {
		return fmt.Errorf("capsule %s: %w", c.ID, common.ErrForbidden)
	}
	if v.Unlocked {
		return fmt.Errorf("capsule %s: %w", c.ID, common.ErrCapsuleUnlocked)
	}
	return nil
}
