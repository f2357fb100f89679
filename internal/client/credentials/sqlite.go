package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/dbx"
)

const lockRetryDelay = 50 * time.Millisecond

// SQLiteStore keeps the token in the client database's metadata table.
//
// Writes are serialized twice: by a mutex inside the process and by an
// advisory file lock across CLI processes sharing the same database.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
	mu   sync.Mutex
}

// NewSQLiteStore returns a store over db. When lockPath is empty no file
// lock is taken.
func NewSQLiteStore(db *sql.DB, lockPath string) *SQLiteStore {
	s := &SQLiteStore{db: db}
	if lockPath != "" {
		s.lock = flock.New(lockPath)
	}
	return s
}

func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	v, _, err := metadata.NewSQLiteRepository(s.db).Get(ctx, common.AccessTokenKey)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	return s.write(ctx, func(ctx context.Context, repo metadata.Repository) error {
		return repo.Set(ctx, common.AccessTokenKey, token)
	})
}

func (s *SQLiteStore) Erase(ctx context.Context) error {
	return s.write(ctx, func(ctx context.Context, repo metadata.Repository) error {
		return repo.Delete(ctx, common.AccessTokenKey)
	})
}

func (s *SQLiteStore) write(ctx context.Context, fn func(ctx context.Context, repo metadata.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("acquire token lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("acquire token lock: %s is held", s.lock.Path())
		}
		defer func() { _ = s.lock.Unlock() }()
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, metadata.NewSQLiteRepository(tx))
	})
}
