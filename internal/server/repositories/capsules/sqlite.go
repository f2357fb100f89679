package capsules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/dbx"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

const (
	capsuleColumns = `id, owner_id, title, description, unlock_at, is_group, created_at, reminder_sent_at`
	mediaColumns   = `id, capsule_id, filename, content_type, file_type, size, storage_key, uploaded_at`
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, c *models.Capsule) error {
	query :=
		`INSERT INTO capsules (` + capsuleColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 `

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.Title, c.Description, dbx.UnixNano(c.UnlockAt), c.IsGroup,
		dbx.UnixNano(c.CreatedAt), dbx.NullUnixNano(c.ReminderSentAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, userID := range c.MemberIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO capsule_members (capsule_id, user_id) VALUES (?, ?)`, c.ID, userID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Capsule, error) {
	c, err := scanCapsule(r.db.QueryRowContext(ctx,
		`SELECT `+capsuleColumns+` FROM capsules WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := r.loadChildren(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepository) ListForUser(ctx context.Context, userID string) ([]*models.Capsule, error) {
	return r.list(ctx, `
		SELECT `+capsuleColumns+` FROM capsules
		WHERE owner_id = ?
		   OR id IN (SELECT capsule_id FROM capsule_members WHERE user_id = ?)
		ORDER BY created_at DESC, id
	`, userID, userID)
}

func (r *SQLiteRepository) DueForReminder(ctx context.Context, from, to time.Time) ([]*models.Capsule, error) {
	return r.list(ctx, `
		SELECT `+capsuleColumns+` FROM capsules
		WHERE unlock_at > ? AND unlock_at <= ? AND reminder_sent_at IS NULL
		ORDER BY unlock_at, id
	`, dbx.UnixNano(from), dbx.UnixNano(to))
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Capsule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capsule row: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate capsule rows: %w", err)
	}
	// children are loaded after the cursor is closed; the database may
	// allow a single connection only
	rows.Close()

	for _, c := range result {
		if err := r.loadChildren(ctx, c); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, c *models.Capsule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE capsules SET title = ?, description = ?, unlock_at = ?, reminder_sent_at = ?
		WHERE id = ?
	`, c.Title, c.Description, dbx.UnixNano(c.UnlockAt), dbx.NullUnixNano(c.ReminderSentAt), c.ID)
	return affectedOne(res, err)
}

func (r *SQLiteRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE capsules SET reminder_sent_at = ? WHERE id = ?`, dbx.UnixNano(at), id)
	return affectedOne(res, err)
}

// Delete removes the capsule with its members and media rows.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	for _, q := range []string{
		`DELETE FROM media WHERE capsule_id = ?`,
		`DELETE FROM capsule_members WHERE capsule_id = ?`,
	} {
		if _, err := r.db.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM capsules WHERE id = ?`, id)
	return affectedOne(res, err)
}

func (r *SQLiteRepository) AddMedia(ctx context.Context, m *models.Media) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO media (`+mediaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.CapsuleID, m.Filename, m.ContentType, string(m.FileType), m.Size, m.StorageKey, dbx.UnixNano(m.UploadedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetMedia(ctx context.Context, mediaID string) (*models.Media, error) {
	m, err := scanMedia(r.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, mediaID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) DeleteMedia(ctx context.Context, capsuleID, mediaID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = ? AND capsule_id = ?`, mediaID, capsuleID)
	return affectedOne(res, err)
}

func (r *SQLiteRepository) loadChildren(ctx context.Context, c *models.Capsule) error {
	members, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM capsule_members WHERE capsule_id = ? ORDER BY user_id`, c.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	c.MemberIDs = nil
	for members.Next() {
		var id string
		if err := members.Scan(&id); err != nil {
			members.Close()
			return fmt.Errorf("failed to scan member row: %w", err)
		}
		c.MemberIDs = append(c.MemberIDs, id)
	}
	members.Close()
	if err := members.Err(); err != nil {
		return fmt.Errorf("failed to iterate member rows: %w", err)
	}

	media, err := r.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE capsule_id = ? ORDER BY uploaded_at, id`, c.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer media.Close()

	c.Media = nil
	for media.Next() {
		m, err := scanMedia(media)
		if err != nil {
			return fmt.Errorf("failed to scan media row: %w", err)
		}
		c.Media = append(c.Media, *m)
	}
	if err := media.Err(); err != nil {
		return fmt.Errorf("failed to iterate media rows: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapsule(row scanner) (*models.Capsule, error) {
	c := &models.Capsule{}
	var unlockAt, createdAt int64
	var remindedAt sql.NullInt64
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &unlockAt, &c.IsGroup,
		&createdAt, &remindedAt); err != nil {
		return nil, err
	}
	c.UnlockAt = dbx.FromUnixNano(unlockAt)
	c.CreatedAt = dbx.FromUnixNano(createdAt)
	c.ReminderSentAt = dbx.FromNullUnixNano(remindedAt)
	return c, nil
}

func scanMedia(row scanner) (*models.Media, error) {
	m := &models.Media{}
	var fileType string
	var uploadedAt int64
	if err := row.Scan(&m.ID, &m.CapsuleID, &m.Filename, &m.ContentType, &fileType,
		&m.Size, &m.StorageKey, &uploadedAt); err != nil {
		return nil, err
	}
	m.FileType = wire.FileType(fileType)
	m.UploadedAt = dbx.FromUnixNano(uploadedAt)
	return m, nil
}

func affectedOne(res sql.Result, err error) error {
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
