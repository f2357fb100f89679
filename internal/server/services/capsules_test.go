package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

func ptr[T any](v T) *T { return &v }

func (e *env) sealed(t *testing.T, owner *models.User, in time.Duration, members ...string) *models.Capsule {
	t.Helper()
	c, err := e.capsules.Create(context.Background(), owner, wire.CapsuleDraft{
		Title:        "letters",
		Description:  "for later",
		UnlockAt:     e.now.Add(in),
		GroupMembers: members,
	})
	require.NoError(t, err)
	return c
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")

	tests := []struct {
		name  string
		draft wire.CapsuleDraft
	}{
		{"empty title", wire.CapsuleDraft{Title: "  ", UnlockAt: e.now.Add(time.Hour)}},
		{"long title", wire.CapsuleDraft{Title: string(bytes.Repeat([]byte("x"), common.MaxTitleLength+1)), UnlockAt: e.now.Add(time.Hour)}},
		{"no unlock", wire.CapsuleDraft{Title: "t"}},
		{"unlock now", wire.CapsuleDraft{Title: "t", UnlockAt: e.now}},
		{"unknown member", wire.CapsuleDraft{Title: "t", UnlockAt: e.now.Add(time.Hour), GroupMembers: []string{"ghost@example.org"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.capsules.Create(ctx, alice, tt.draft)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	list, err := e.capsules.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_GroupMembersAndMail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")
	bob := e.verifiedUser(t, "b@example.org")

	c := e.sealed(t, alice, time.Hour, "B@example.org", bob.ID, alice.Email, "")
	assert.True(t, c.IsGroup)
	assert.Equal(t, []string{bob.ID}, c.MemberIDs, "deduplicated, owner excluded")

	msg, ok := e.mailer.Last(alice.Email)
	require.True(t, ok)
	assert.Equal(t, "A time capsule was sealed", msg.Subject)

	shared, err := e.capsules.List(ctx, bob)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, c.ID, shared[0].ID)

	got, err := e.capsules.Get(ctx, bob, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "letters", got.Title)
}

func TestGet_Access(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")
	eve := e.verifiedUser(t, "e@example.org")
	c := e.sealed(t, alice, time.Hour)

	_, err := e.capsules.Get(ctx, eve, c.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = e.capsules.Get(ctx, alice, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")
	bob := e.verifiedUser(t, "b@example.org")
	c := e.sealed(t, alice, time.Hour, bob.Email)

	_, err := e.capsules.Update(ctx, bob, c.ID, wire.CapsuleUpdate{Title: ptr("mine")})
	assert.ErrorIs(t, err, common.ErrForbidden, "members cannot edit")

	_, err = e.capsules.Update(ctx, alice, c.ID, wire.CapsuleUpdate{UnlockAt: ptr(e.now.Add(-time.Minute))})
	assert.ErrorIs(t, err, common.ErrValidation)

	upd, err := e.capsules.Update(ctx, alice, c.ID, wire.CapsuleUpdate{
		Title:       ptr(" renamed "),
		Description: ptr(""),
		UnlockAt:    ptr(e.now.Add(2 * time.Hour)),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", upd.Title)
	assert.Empty(t, upd.Description)
	assert.True(t, e.now.Add(2*time.Hour).Equal(upd.UnlockAt))

	e.now = e.now.Add(3 * time.Hour)
	_, err = e.capsules.Update(ctx, alice, c.ID, wire.CapsuleUpdate{Title: ptr("late")})
	assert.ErrorIs(t, err, common.ErrCapsuleUnlocked)
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")
	bob := e.verifiedUser(t, "b@example.org")
	c := e.sealed(t, alice, time.Hour, bob.Email)

	m, err := e.capsules.Upload(ctx, alice, c.ID, textUpload("hi"))
	require.NoError(t, err)

	assert.ErrorIs(t, e.capsules.Delete(ctx, bob, c.ID), common.ErrForbidden)

	e.now = e.now.Add(2 * time.Hour)
	require.NoError(t, e.capsules.Delete(ctx, alice, c.ID), "owners may delete after unlock")

	_, err = e.capsules.Get(ctx, alice, c.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = e.capsules.MediaURL(ctx, alice, m.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpload_Rules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")
	bob := e.verifiedUser(t, "b@example.org")
	c := e.sealed(t, alice, time.Hour, bob.Email)

	_, err := e.capsules.Upload(ctx, bob, c.ID, textUpload("x"))
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = e.capsules.Upload(ctx, alice, c.ID, Upload{Filename: "a.exe", ContentType: "application/x-msdownload", Size: 1, Body: bytes.NewReader([]byte("x"))})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.capsules.Upload(ctx, alice, c.ID, Upload{Filename: "", ContentType: "text/plain", Size: 1, Body: bytes.NewReader([]byte("x"))})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.capsules.Upload(ctx, alice, c.ID, Upload{Filename: "big.txt", ContentType: "text/plain", Size: common.MaxMediaSize + 1, Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrMediaTooLarge)

	m, err := e.capsules.Upload(ctx, alice, c.ID, Upload{Filename: "../dir/Photo.PNG", ContentType: "image/png", Size: 3, Body: bytes.NewReader([]byte("png"))})
	require.NoError(t, err)
	assert.Equal(t, "Photo.PNG", m.Filename)
	assert.Equal(t, wire.FileTypeImage, m.FileType)
	assert.Equal(t, c.ID+"/"+m.ID+".png", m.StorageKey)

	got, err := e.capsules.Get(ctx, alice, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Media, 1)

	e.now = e.now.Add(2 * time.Hour)
	_, err = e.capsules.Upload(ctx, alice, c.ID, textUpload("late"))
	assert.ErrorIs(t, err, common.ErrCapsuleUnlocked)
}

func TestMediaURL_OpensAtUnlock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")
	bob := e.verifiedUser(t, "b@example.org")
	eve := e.verifiedUser(t, "e@example.org")
	c := e.sealed(t, alice, time.Hour, bob.Email)

	m, err := e.capsules.Upload(ctx, alice, c.ID, textUpload("hello future"))
	require.NoError(t, err)

	_, err = e.capsules.MediaURL(ctx, alice, m.ID)
	assert.ErrorIs(t, err, common.ErrCapsuleLocked, "not even the owner before unlock")

	e.now = c.UnlockAt
	_, err = e.capsules.MediaURL(ctx, eve, m.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	link, err := e.capsules.MediaURL(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 3600, link.ExpiresIn)

	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	e.storage.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "hello future", string(body))
}

func TestDeleteMedia(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")
	bob := e.verifiedUser(t, "b@example.org")
	c := e.sealed(t, alice, time.Hour, bob.Email)

	m1, err := e.capsules.Upload(ctx, alice, c.ID, textUpload("one"))
	require.NoError(t, err)
	m2, err := e.capsules.Upload(ctx, alice, c.ID, textUpload("two"))
	require.NoError(t, err)

	assert.ErrorIs(t, e.capsules.DeleteMedia(ctx, bob, m1.ID), common.ErrForbidden)
	require.NoError(t, e.capsules.DeleteMedia(ctx, alice, m1.ID))
	assert.ErrorIs(t, e.capsules.DeleteMedia(ctx, alice, m1.ID), common.ErrNotFound)

	e.now = e.now.Add(2 * time.Hour)
	assert.ErrorIs(t, e.capsules.DeleteMedia(ctx, alice, m2.ID), common.ErrCapsuleUnlocked)
}

func TestSendReminders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.verifiedUser(t, "a@example.org")

	soon := e.sealed(t, alice, 2*time.Hour)
	e.sealed(t, alice, 72*time.Hour)

	n, err := e.capsules.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msg, ok := e.mailer.Last(alice.Email)
	require.True(t, ok)
	assert.Equal(t, "A time capsule opens soon", msg.Subject)
	assert.Contains(t, msg.Body, soon.Title)

	n, err = e.capsules.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "each capsule is reminded once")

	_, err = e.capsules.Update(ctx, alice, soon.ID, wire.CapsuleUpdate{UnlockAt: ptr(e.now.Add(3 * time.Hour))})
	require.NoError(t, err)
	n, err = e.capsules.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "moving the unlock time re-arms the reminder")
}
