package codes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/dbx"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, code *models.Code) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO codes (email, purpose, digest, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email, purpose) DO UPDATE SET digest = excluded.digest, expires_at = excluded.expires_at
	`, code.Email, code.Purpose, code.Digest, dbx.UnixNano(code.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to store %s code: %w", code.Purpose, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, email, purpose string) (*models.Code, error) {
	code := &models.Code{Email: email, Purpose: purpose}
	var expiresAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT digest, expires_at FROM codes WHERE email = ? AND purpose = ?`, email, purpose,
	).Scan(&code.Digest, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s code: %w", purpose, err)
	}
	code.ExpiresAt = dbx.FromUnixNano(expiresAt)
	return code, nil
}

// Delete is a no-op when no code is pending.
func (r *SQLiteRepository) Delete(ctx context.Context, email, purpose string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM codes WHERE email = ? AND purpose = ?`, email, purpose)
	if err != nil {
		return fmt.Errorf("failed to delete %s code: %w", purpose, err)
	}
	return nil
}
