package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/access"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/dbx"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/config"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/mail"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/media"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/repomanager"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

// ErrMediaTooLarge is returned for uploads over common.MaxMediaSize.
var ErrMediaTooLarge = errors.New("media too large")

// Upload is one media file as received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// CapsuleService owns capsules and their media. Lock-state rules are the
// same ones the client applies locally, evaluated here at the server's
// clock.
type CapsuleService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	storage      media.Storage
	mailer       mail.Mailer
	log          logging.Logger
	mediaURLTTL  time.Duration
	notifyWindow time.Duration
	now          func() time.Time
}

func NewCapsuleService(db *sql.DB, m repomanager.RepositoryManager, storage media.Storage, mailer mail.Mailer, log logging.Logger, cfg *config.Config) *CapsuleService {
	return &CapsuleService{
		db:           db,
		repomanager:  m,
		storage:      storage,
		mailer:       mailer,
		log:          log,
		mediaURLTTL:  cfg.MediaURLValidityDuration,
		notifyWindow: cfg.NotifyWindow,
		now:          time.Now,
	}
}

// Now is the server clock the service decides lock state with.
func (s *CapsuleService) Now() time.Time {
	return s.now()
}

// SetClock replaces the service clock.
func (s *CapsuleService) SetClock(now func() time.Time) {
	s.now = now
}

// Create seals a new capsule for owner. Group members may be given by email
// or user id; unknown members are a validation error and the owner is never
// listed as a member.
func (s *CapsuleService) Create(ctx context.Context, owner *models.User, draft wire.CapsuleDraft) (*models.Capsule, error) {
	now := s.now()

	title := strings.TrimSpace(draft.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateUnlockAt(draft.UnlockAt, now); err != nil {
		return nil, err
	}

	c := &models.Capsule{
		ID:          uuid.NewString(),
		OwnerID:     owner.ID,
		Title:       title,
		Description: strings.TrimSpace(draft.Description),
		UnlockAt:    draft.UnlockAt.UTC(),
		CreatedAt:   now.UTC(),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		members, err := s.resolveMembers(ctx, tx, owner.ID, draft.GroupMembers)
		if err != nil {
			return err
		}
		c.MemberIDs = members
		c.IsGroup = draft.IsGroup || len(members) > 0
		return s.repomanager.Capsules(tx).Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.send(ctx, mail.CapsuleCreated(owner.Email, c.Title, c.UnlockAt))
	s.log.Info(ctx, "capsule created", "capsule_id", c.ID, "owner_id", owner.ID, "unlock_at", c.UnlockAt)
	return c, nil
}

func (s *CapsuleService) resolveMembers(ctx context.Context, tx dbx.DBTX, ownerID string, refs []string) ([]string, error) {
	users := s.repomanager.Users(tx)
	seen := make(map[string]struct{})
	var ids []string

	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}

		var u *models.User
		var err error
		if strings.Contains(ref, "@") {
			u, err = users.GetByEmail(ctx, normalizeEmail(ref))
		} else {
			u, err = users.GetByID(ctx, ref)
		}
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewValidationError("group_members", "unknown member %q", ref)
		}
		if err != nil {
			return nil, err
		}

		if _, dup := seen[u.ID]; dup || u.ID == ownerID {
			continue
		}
		seen[u.ID] = struct{}{}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// List returns the capsules viewer owns or shares, newest first.
func (s *CapsuleService) List(ctx context.Context, viewer *models.User) ([]*models.Capsule, error) {
	return s.repomanager.Capsules(s.db).ListForUser(ctx, viewer.ID)
}

// Get returns a capsule its owner or a group member may see.
func (s *CapsuleService) Get(ctx context.Context, viewer *models.User, id string) (*models.Capsule, error) {
	c, err := s.repomanager.Capsules(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsMember(viewer.ID) {
		return nil, fmt.Errorf("capsule %s: %w", id, common.ErrForbidden)
	}
	return c, nil
}

// Update applies a partial update. Only the owner may update, and only while
// the capsule is locked. Moving the unlock time re-arms the reminder.
func (s *CapsuleService) Update(ctx context.Context, viewer *models.User, id string, upd wire.CapsuleUpdate) (*models.Capsule, error) {
	c, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := access.CheckUpdate(c.Wire(now), viewer.ID, now); err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		c.Title = title
	}
	if upd.Description != nil {
		c.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.UnlockAt != nil {
		if err := validateUnlockAt(*upd.UnlockAt, now); err != nil {
			return nil, err
		}
		if !upd.UnlockAt.Equal(c.UnlockAt) {
			c.UnlockAt = upd.UnlockAt.UTC()
			c.ReminderSentAt = nil
		}
	}

	if err := s.repomanager.Capsules(s.db).Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a capsule and its media. Only the owner may delete, in
// either lock state.
func (s *CapsuleService) Delete(ctx context.Context, viewer *models.User, id string) error {
	c, err := s.Get(ctx, viewer, id)
	if err != nil {
		return err
	}
	now := s.now()
	if err := access.CheckCapsuleDelete(c.Wire(now), viewer.ID, now); err != nil {
		return err
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Capsules(tx).Delete(ctx, id)
	}); err != nil {
		return err
	}

	for _, m := range c.Media {
		s.deleteBlob(ctx, m.StorageKey)
	}
	s.log.Info(ctx, "capsule deleted", "capsule_id", id)
	return nil
}

// Upload attaches a file to a locked capsule owned by viewer.
func (s *CapsuleService) Upload(ctx context.Context, viewer *models.User, capsuleID string, u Upload) (*models.Media, error) {
	c, err := s.Get(ctx, viewer, capsuleID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := access.CheckUpload(c.Wire(now), viewer.ID, now); err != nil {
		return nil, err
	}

	filename := path.Base(filepath.ToSlash(strings.TrimSpace(u.Filename)))
	if filename == "." || filename == "/" || filename == "" {
		return nil, common.NewValidationError("file", "filename is required")
	}
	fileType, ok := wire.FileTypeFor(u.ContentType)
	if !ok {
		return nil, common.NewValidationError("file", "file type %q is not supported", u.ContentType)
	}
	if u.Size > common.MaxMediaSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMediaTooLarge, u.Size)
	}

	m := &models.Media{
		ID:          uuid.NewString(),
		CapsuleID:   c.ID,
		Filename:    filename,
		ContentType: u.ContentType,
		FileType:    fileType,
		Size:        u.Size,
		UploadedAt:  now.UTC(),
	}
	m.StorageKey = c.ID + "/" + m.ID + strings.ToLower(path.Ext(filename))

	if err := s.storage.Put(ctx, m.StorageKey, u.Body, u.Size, u.ContentType); err != nil {
		return nil, err
	}
	if err := s.repomanager.Capsules(s.db).AddMedia(ctx, m); err != nil {
		s.deleteBlob(ctx, m.StorageKey)
		return nil, err
	}

	s.log.Info(ctx, "media uploaded", "capsule_id", c.ID, "media_id", m.ID, "size", m.Size)
	return m, nil
}

// MediaURL returns a short-lived link to media of an unlocked capsule.
func (s *CapsuleService) MediaURL(ctx context.Context, viewer *models.User, mediaID string) (*wire.MediaURL, error) {
	m, c, err := s.mediaWithCapsule(ctx, viewer, mediaID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := access.CheckMediaAccess(c.Wire(now), viewer.ID, now); err != nil {
		return nil, err
	}

	link, err := s.storage.URL(ctx, m.StorageKey, m.Filename, s.mediaURLTTL)
	if err != nil {
		return nil, err
	}
	return &wire.MediaURL{URL: link, ExpiresIn: int(s.mediaURLTTL / time.Second)}, nil
}

// DeleteMedia removes media from a locked capsule owned by viewer.
func (s *CapsuleService) DeleteMedia(ctx context.Context, viewer *models.User, mediaID string) error {
	m, c, err := s.mediaWithCapsule(ctx, viewer, mediaID)
	if err != nil {
		return err
	}
	now := s.now()
	if err := access.CheckMediaDelete(c.Wire(now), viewer.ID, now); err != nil {
		return err
	}

	if err := s.repomanager.Capsules(s.db).DeleteMedia(ctx, c.ID, m.ID); err != nil {
		return err
	}
	s.deleteBlob(ctx, m.StorageKey)
	return nil
}

func (s *CapsuleService) mediaWithCapsule(ctx context.Context, viewer *models.User, mediaID string) (*models.Media, *models.Capsule, error) {
	m, err := s.repomanager.Capsules(s.db).GetMedia(ctx, mediaID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.Get(ctx, viewer, m.CapsuleID)
	if err != nil {
		return nil, nil, err
	}
	return m, c, nil
}

// SendReminders mails the owner of every capsule unlocking within the
// notify window that has not been reminded yet, and returns how many
// reminders went out. A failed mail leaves the capsule due for the next run.
func (s *CapsuleService) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	capsules := s.repomanager.Capsules(s.db)

	due, err := capsules.DueForReminder(ctx, now, now.Add(s.notifyWindow))
	if err != nil {
		return 0, err
	}

	users := s.repomanager.Users(s.db)
	sent := 0
	for _, c := range due {
		owner, err := users.GetByID(ctx, c.OwnerID)
		if err != nil {
			s.log.Warn(ctx, "reminder skipped", "capsule_id", c.ID, "error", err)
			continue
		}
		if err := s.mailer.Send(ctx, mail.UnlockReminder(owner.Email, c.Title, c.UnlockAt, now)); err != nil {
			s.log.Warn(ctx, "reminder not sent", "capsule_id", c.ID, "error", err)
			continue
		}
		if err := capsules.MarkReminded(ctx, c.ID, now); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (s *CapsuleService) deleteBlob(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "blob not deleted", "key", key, "error", err)
	}
}

func (s *CapsuleService) send(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn(ctx, "mail not sent", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}
