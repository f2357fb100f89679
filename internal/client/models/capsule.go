package models

import (
	"strings"
	"time"
)

// Capsule is a titled container of media that opens at UnlockAt.
//
// Whether a capsule is unlocked is never stored on the client: it is derived
// from UnlockAt and the current time. UnlockedHint mirrors the server's
// is_unlocked field and is informational only.
type Capsule struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	UnlockAt     time.Time `json:"unlock_date"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	OwnerID      string    `json:"owner_id"`
	IsGroup      bool      `json:"is_group"`
	UnlockedHint *bool     `json:"is_unlocked,omitempty"`
	Media        []Media   `json:"media"`
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

// CapsuleDraft is the create request.
type CapsuleDraft struct {
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	UnlockAt     time.Time `json:"unlock_date"`
	IsGroup      bool      `json:"is_group"`
	GroupMembers []string  `json:"group_members"`
}

// CapsuleUpdate is a partial update; nil fields are left unchanged.
type CapsuleUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	UnlockAt    *time.Time `json:"unlock_date,omitempty"`
}

// FileType is the coarse media category.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypeAudio FileType = "audio"
	FileTypeText  FileType = "text"
)

// Media is a file attached to a capsule. Its bytes are fetched out of band
// through a short-lived URL.
type Media struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileType   FileType  `json:"file_type"`
	CapsuleID  string    `json:"capsule_id"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
}

// MediaURL is a short-lived link to media content.
type MediaURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

var allowedContentTypes = map[FileType][]string{
	FileTypeImage: {"image/jpeg", "image/png", "image/gif", "image/webp"},
	FileTypeVideo: {"video/mp4", "video/webm", "video/quicktime"},
	FileTypeAudio: {"audio/mpeg", "audio/wav", "audio/ogg"},
	FileTypeText:  {"text/plain"},
}

// FileTypeFor maps a MIME content type to its media category. Parameters
// such as "; charset=utf-8" are ignored. ok is false for unsupported types.
func FileTypeFor(contentType string) (FileType, bool) {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	for ft, types := range allowedContentTypes {
		for _, t := range types {
			if t == base {
				return ft, true
			}
		}
	}
	return "", false
}
