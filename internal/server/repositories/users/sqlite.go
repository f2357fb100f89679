package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

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

// Create returns common.ErrEmailAlreadyRegistered when the email is taken.
func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (id, username, email, password_hash, email_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 `

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.EmailVerified, dbx.UnixNano(user.CreatedAt))
	if err != nil {
		var se *sqlite.Error
		// primary codes are the low byte of extended ones
		if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return common.ErrEmailAlreadyRegistered
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `WHERE email = ?`, email)
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, email_verified, created_at FROM users ` + where

	user := &models.User{}
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.EmailVerified, &createdAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = dbx.FromUnixNano(createdAt)

	return user, nil
}

func (r *SQLiteRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE users SET email_verified = 1 WHERE id = ?`, id)
}

func (r *SQLiteRepository) SetPasswordHash(ctx context.Context, id string, hash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

func (r *SQLiteRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
