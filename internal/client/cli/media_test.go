package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUpload(t *testing.T) {
	srv := newFakeServer()
	a, u, out := loggedIn(t, srv)
	srv.addCapsule(models.Capsule{ID: "c-1", OwnerID: u.ID, UnlockAt: time.Now().Add(time.Hour)})
	path := writeTemp(t, "note.txt", "hello future")

	require.NoError(t, a.Upload(context.Background(), []string{"c-1", path}))
	require.Equal(t, []byte("hello future"), srv.uploaded)
	require.Len(t, srv.capsules["c-1"].Media, 1)
	m := srv.capsules["c-1"].Media[0]
	require.Equal(t, "note.txt", m.Filename)
	require.Equal(t, models.FileTypeText, m.FileType)
	require.Contains(t, out.String(), "Uploaded note.txt")
}

func TestUpload_Refusals(t *testing.T) {
	srv := newFakeServer()
	a, u, _ := loggedIn(t, srv)
	srv.addCapsule(models.Capsule{ID: "open", OwnerID: u.ID, UnlockAt: time.Now().Add(-time.Hour)})
	srv.addCapsule(models.Capsule{ID: "theirs", OwnerID: "other", UnlockAt: time.Now().Add(time.Hour)})
	srv.addCapsule(models.Capsule{ID: "mine", OwnerID: u.ID, UnlockAt: time.Now().Add(time.Hour)})
	txt := writeTemp(t, "a.txt", "x")
	ctx := context.Background()

	require.ErrorIs(t, a.Upload(ctx, []string{"open", txt}), common.ErrCapsuleUnlocked)
	require.ErrorIs(t, a.Upload(ctx, []string{"theirs", txt}), common.ErrForbidden)
	require.ErrorIs(t, a.Upload(ctx, []string{"mine", writeTemp(t, "a.pdf", "%PDF-1.4")}), common.ErrValidation)
	require.ErrorIs(t, a.Upload(ctx, []string{"mine", filepath.Join(t.TempDir(), "missing.txt")}), common.ErrValidation)
	require.ErrorIs(t, a.Upload(ctx, []string{"mine"}), common.ErrValidation)
	require.Nil(t, srv.uploaded)
}

func TestDetectContentType_Sniffs(t *testing.T) {
	path := writeTemp(t, "noext", "\x89PNG\r\n\x1a\n0000")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ct, err := detectContentType(f)
	require.NoError(t, err)
	require.Equal(t, "image/png", ct)

	pos, err := f.Seek(0, 1)
	require.NoError(t, err)
	require.Zero(t, pos)
}

func TestFetch(t *testing.T) {
	blob := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pixels"))
	}))
	defer blob.Close()

	srv := newFakeServer()
	srv.mediaURL = blob.URL + "/media/m-1"
	a, u, out := loggedIn(t, srv)
	srv.addCapsule(models.Capsule{
		ID: "c-1", OwnerID: u.ID, UnlockAt: time.Now().Add(-time.Hour),
		Media: []models.Media{{ID: "m-1", Filename: "pic.png", FileType: models.FileTypeImage}},
	})
	ctx := context.Background()

	require.NoError(t, a.Fetch(ctx, []string{"c-1", "m-1"}))
	require.NoError(t, a.Fetch(ctx, []string{"c-1", "m-1"}))

	first, err := os.ReadFile(filepath.Join(a.config.DownloadDir, "pic.png"))
	require.NoError(t, err)
	require.Equal(t, "pixels", string(first))
	_, err = os.Stat(filepath.Join(a.config.DownloadDir, "pic (1).png"))
	require.NoError(t, err)
	require.Contains(t, out.String(), "Saved")
}

func TestFetch_LockedCapsule(t *testing.T) {
	srv := newFakeServer()
	a, u, _ := loggedIn(t, srv)
	srv.addCapsule(models.Capsule{
		ID: "c-1", OwnerID: u.ID, UnlockAt: time.Now().Add(time.Hour),
		Media: []models.Media{{ID: "m-1", Filename: "pic.png"}},
	})
	ctx := context.Background()

	require.ErrorIs(t, a.Fetch(ctx, []string{"c-1", "m-1"}), common.ErrCapsuleLocked)
	require.ErrorIs(t, a.MediaURL(ctx, []string{"c-1", "m-1"}), common.ErrCapsuleLocked)
	require.ErrorIs(t, a.MediaURL(ctx, []string{"c-1", "nope"}), common.ErrNotFound)

	entries, err := os.ReadDir(a.config.DownloadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFetch_FailedDownloadLeavesNoFile(t *testing.T) {
	blob := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer blob.Close()

	srv := newFakeServer()
	srv.mediaURL = blob.URL
	a, u, _ := loggedIn(t, srv)
	srv.addCapsule(models.Capsule{
		ID: "c-1", OwnerID: u.ID, UnlockAt: time.Now().Add(-time.Hour),
		Media: []models.Media{{ID: "m-1", Filename: "pic.png"}},
	})

	require.Error(t, a.Fetch(context.Background(), []string{"c-1", "m-1"}))
	entries, err := os.ReadDir(a.config.DownloadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMediaURL_ResolvesRelativeLinks(t *testing.T) {
	srv := newFakeServer()
	srv.mediaURL = "/blobs/m-1?sig=abc"
	a, u, out := loggedIn(t, srv)
	a.config.ServerURL = "http://capsules.test:8000"
	srv.addCapsule(models.Capsule{
		ID: "c-1", OwnerID: u.ID, UnlockAt: time.Now().Add(-time.Hour),
		Media: []models.Media{{ID: "m-1", Filename: "pic.png"}},
	})

	require.NoError(t, a.MediaURL(context.Background(), []string{"c-1", "m-1"}))
	require.Contains(t, out.String(), "http://capsules.test:8000/blobs/m-1?sig=abc")
	require.Contains(t, out.String(), "expires in 3600 seconds")
}

func TestDeleteMedia(t *testing.T) {
	srv := newFakeServer()
	a, u, _ := loggedIn(t, srv, "y", "y")
	srv.addCapsule(models.Capsule{
		ID: "locked", OwnerID: u.ID, UnlockAt: time.Now().Add(time.Hour),
		Media: []models.Media{{ID: "m-1", Filename: "a.txt"}},
	})
	srv.addCapsule(models.Capsule{
		ID: "open", OwnerID: u.ID, UnlockAt: time.Now().Add(-time.Hour),
		Media: []models.Media{{ID: "m-2", Filename: "b.txt"}},
	})
	ctx := context.Background()

	require.NoError(t, a.DeleteMedia(ctx, []string{"locked", "m-1"}))
	require.Empty(t, srv.capsules["locked"].Media)

	require.ErrorIs(t, a.DeleteMedia(ctx, []string{"open", "m-2"}), common.ErrCapsuleUnlocked)
	require.Len(t, srv.capsules["open"].Media, 1)
}
