package models

import (
	"slices"
	"time"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

type Capsule struct {
	ID             string
	OwnerID        string
	Title          string
	Description    string
	UnlockAt       time.Time
	IsGroup        bool
	CreatedAt      time.Time
	ReminderSentAt *time.Time
	MemberIDs      []string
	Media          []Media
}

type Media struct {
	ID          string
	CapsuleID   string
	Filename    string
	ContentType string
	FileType    wire.FileType
	Size        int64
	StorageKey  string
	UploadedAt  time.Time
}

// IsMember reports whether userID owns the capsule or is one of its group
// members.
func (c *Capsule) IsMember(userID string) bool {
	return userID != "" && (c.OwnerID == userID || slices.Contains(c.MemberIDs, userID))
}

// FindMedia returns the media item with the given id.
func (c *Capsule) FindMedia(id string) (*Media, bool) {
	for i := range c.Media {
		if c.Media[i].ID == id {
			return &c.Media[i], true
		}
	}
	return nil, false
}

// Wire converts the capsule to its response form as of now.
func (c *Capsule) Wire(now time.Time) *wire.Capsule {
	unlocked := !now.Before(c.UnlockAt)
	out := &wire.Capsule{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		UnlockAt:     c.UnlockAt,
		CreatedAt:    c.CreatedAt,
		OwnerID:      c.OwnerID,
		IsGroup:      c.IsGroup,
		UnlockedHint: &unlocked,
		Media:        make([]wire.Media, 0, len(c.Media)),
	}
	for i := range c.Media {
		out.Media = append(out.Media, *c.Media[i].Wire())
	}
	return out
}

func (m *Media) Wire() *wire.Media {
	return &wire.Media{
		ID:         m.ID,
		Filename:   m.Filename,
		FileType:   m.FileType,
		CapsuleID:  m.CapsuleID,
		UploadedAt: m.UploadedAt,
	}
}
