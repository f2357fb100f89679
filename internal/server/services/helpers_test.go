package services

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/config"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/mail"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/media"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/repomanager"
)

type env struct {
	db       *sql.DB
	rm       repomanager.RepositoryManager
	mailer   *mail.LogMailer
	storage  *media.LocalStorage
	users    *UserService
	capsules *CapsuleService
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	rm := repomanager.NewSQLiteRepositoryManager()
	db, err := repomanager.OpenSQLite(ctx, rm, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()

	storage, err := media.NewLocalStorage(filepath.Join(t.TempDir(), "media"), "http://srv.test", []byte(cfg.SecretKey))
	require.NoError(t, err)

	e := &env{
		db:      db,
		rm:      rm,
		mailer:  mail.NewLogMailer(logging.NewNop()),
		storage: storage,
		now:     time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	e.users = NewUserService(db, rm, e.mailer, logging.NewNop(), cfg)
	e.capsules = NewCapsuleService(db, rm, storage, e.mailer, logging.NewNop(), cfg)
	e.users.now = func() time.Time { return e.now }
	e.capsules.now = func() time.Time { return e.now }
	return e
}

// lastCode pulls the six digits out of the latest mail to addr.
func (e *env) lastCode(t *testing.T, addr string) string {
	t.Helper()
	msg, ok := e.mailer.Last(addr)
	require.True(t, ok, "no mail to %s", addr)
	for _, f := range strings.Fields(msg.Body) {
		f = strings.TrimSuffix(f, ".")
		if len(f) == 6 && strings.Trim(f, "0123456789") == "" {
			return f
		}
	}
	t.Fatalf("no code in %q", msg.Body)
	return ""
}

// verifiedUser signs up and verifies email.
func (e *env) verifiedUser(t *testing.T, email string) *models.User {
	t.Helper()
	ctx := context.Background()
	u, err := e.users.Signup(ctx, email, "secret1", "user "+email[:1])
	require.NoError(t, err)
	require.NoError(t, e.users.VerifyEmail(ctx, email, e.lastCode(t, email)))
	u.EmailVerified = true
	return u
}

func textUpload(body string) Upload {
	return Upload{Filename: "note.txt", ContentType: "text/plain", Size: int64(len(body)), Body: bytes.NewReader([]byte(body))}
}
