package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/access"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/client"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
)

// CapsuleService runs capsule and media operations for the signed-in user.
//
// Each operation is checked locally against the access policy before it is
// sent, so an operation the server would refuse fails without a round trip.
// An ErrUnauthorized from the server ends the session.
type CapsuleService struct {
	api     client.CapsuleAPI
	session *SessionManager
	log     logging.Logger
	now     func() time.Time
}

// CapsuleOption customizes a CapsuleService.
type CapsuleOption func(*CapsuleService)

// WithNow replaces the time source.
func WithNow(now func() time.Time) CapsuleOption {
	return func(s *CapsuleService) { s.now = now }
}

func NewCapsuleService(api client.CapsuleAPI, session *SessionManager, log logging.Logger, opts ...CapsuleOption) *CapsuleService {
	if log == nil {
		log = logging.NewNop()
	}
	s := &CapsuleService{api: api, session: session, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upload describes a file to attach to a capsule.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Now returns the service's current time.
func (s *CapsuleService) Now() time.Time {
	return s.now()
}

// Verdict evaluates the access policy for the current user at the current
// time.
func (s *CapsuleService) Verdict(c *models.Capsule) access.Verdict {
	return access.Visibility(c, s.viewerID(), s.now())
}

func (s *CapsuleService) List(ctx context.Context) ([]models.Capsule, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	list, err := s.api.ListCapsules(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list capsules", err)
	}
	return list, nil
}

func (s *CapsuleService) Get(ctx context.Context, id string) (*models.Capsule, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	c, err := s.api.GetCapsule(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get capsule", err)
	}
	return c, nil
}

// Create validates and creates a capsule owned by the current user.
func (s *CapsuleService) Create(ctx context.Context, draft models.CapsuleDraft) (*models.Capsule, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	draft.Title = strings.TrimSpace(draft.Title)
	if err := validateTitle(draft.Title); err != nil {
		return nil, err
	}
	if err := validateUnlockAt(draft.UnlockAt, s.now()); err != nil {
		return nil, err
	}
	if !draft.IsGroup {
		draft.GroupMembers = nil
	}
	draft.UnlockAt = draft.UnlockAt.UTC()

	c, err := s.api.CreateCapsule(ctx, draft)
	if err != nil {
		return nil, s.fail(ctx, "create capsule", err)
	}
	s.log.Info(ctx, "capsule created", "capsule_id", c.ID)
	return c, nil
}

// Update edits a locked capsule the current user owns. A new unlock time
// must respect the same minimum lead time as at creation.
func (s *CapsuleService) Update(ctx context.Context, id string, upd models.CapsuleUpdate) (*models.Capsule, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := access.CheckUpdate(c, s.viewerID(), now); err != nil {
		return nil, err
	}
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if err := validateTitle(t); err != nil {
			return nil, err
		}
		upd.Title = &t
	}
	if upd.UnlockAt != nil {
		if err := validateUnlockAt(*upd.UnlockAt, now); err != nil {
			return nil, err
		}
		u := upd.UnlockAt.UTC()
		upd.UnlockAt = &u
	}
	if upd.Title == nil && upd.Description == nil && upd.UnlockAt == nil {
		return c, nil
	}

	out, err := s.api.UpdateCapsule(ctx, id, upd)
	if err != nil {
		return nil, s.fail(ctx, "update capsule", err)
	}
	return out, nil
}

// Delete removes a capsule the current user owns, locked or not.
func (s *CapsuleService) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := access.CheckCapsuleDelete(c, s.viewerID(), s.now()); err != nil {
		return err
	}
	if err := s.api.DeleteCapsule(ctx, id); err != nil {
		return s.fail(ctx, "delete capsule", err)
	}
	s.log.Info(ctx, "capsule deleted", "capsule_id", id)
	return nil
}

// Upload attaches a file to a locked capsule the current user owns.
func (s *CapsuleService) Upload(ctx context.Context, capsuleID string, u Upload) (*models.Media, error) {
	if _, ok := models.FileTypeFor(u.ContentType); !ok {
		return nil, common.NewValidationError("file", "file type %q is not supported", u.ContentType)
	}
	if u.Size > common.MaxMediaSize {
		return nil, common.NewValidationError("file", "file exceeds the %d MB limit", common.MaxMediaSize/(1024*1024))
	}
	if strings.TrimSpace(u.Filename) == "" {
		return nil, common.NewValidationError("file", "file name is required")
	}

	c, err := s.Get(ctx, capsuleID)
	if err != nil {
		return nil, err
	}
	if err := access.CheckUpload(c, s.viewerID(), s.now()); err != nil {
		return nil, err
	}

	m, err := s.api.UploadMedia(ctx, capsuleID, u.Filename, u.ContentType, u.Body)
	if err != nil {
		return nil, s.fail(ctx, "upload media", err)
	}
	s.log.Info(ctx, "media uploaded", "capsule_id", capsuleID, "media_id", m.ID)
	return m, nil
}

// MediaURL returns a short-lived link to media of an unlocked capsule.
func (s *CapsuleService) MediaURL(ctx context.Context, capsuleID, mediaID string) (*models.Media, *models.MediaURL, error) {
	c, err := s.Get(ctx, capsuleID)
	if err != nil {
		return nil, nil, err
	}
	m, ok := c.FindMedia(mediaID)
	if !ok {
		return nil, nil, fmt.Errorf("media %s: %w", mediaID, common.ErrNotFound)
	}
	if err := access.CheckMediaAccess(c, s.viewerID(), s.now()); err != nil {
		return nil, nil, err
	}

	u, err := s.api.MediaURL(ctx, mediaID)
	if err != nil {
		return nil, nil, s.fail(ctx, "media url", err)
	}
	return m, u, nil
}

// DeleteMedia removes media from a locked capsule the current user owns.
func (s *CapsuleService) DeleteMedia(ctx context.Context, capsuleID, mediaID string) error {
	c, err := s.Get(ctx, capsuleID)
	if err != nil {
		return err
	}
	if _, ok := c.FindMedia(mediaID); !ok {
		return fmt.Errorf("media %s: %w", mediaID, common.ErrNotFound)
	}
	if err := access.CheckMediaDelete(c, s.viewerID(), s.now()); err != nil {
		return err
	}
	if err := s.api.DeleteMedia(ctx, mediaID); err != nil {
		return s.fail(ctx, "delete media", err)
	}
	return nil
}

func (s *CapsuleService) viewerID() string {
	if id := s.session.Identity(); id != nil {
		return id.ID
	}
	return ""
}

func (s *CapsuleService) requireSession() error {
	if !s.session.IsAuthenticated() {
		return common.ErrUnauthorized
	}
	return nil
}

func (s *CapsuleService) fail(ctx context.Context, op string, err error) error {
	return fmt.Errorf("%s: %w", op, s.session.HandleAPIError(ctx, err))
}
