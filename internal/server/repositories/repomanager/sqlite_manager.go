package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/dmitrijs2005/capsulekeeper/internal/dbx"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/migrations"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/capsules"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/codes"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/users"
)

type SQLiteRepositoryManager struct {
}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Capsules(db dbx.DBTX) capsules.Repository {
	return capsules.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Codes(db dbx.DBTX) codes.Repository {
	return codes.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Tokens(db dbx.DBTX) tokens.Repository {
	return tokens.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func NewSQLiteRepositoryManager() RepositoryManager {
	return &SQLiteRepositoryManager{}
}

// OpenSQLite opens the database at dsn and applies the migrations of m.
func OpenSQLite(ctx context.Context, m RepositoryManager, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection keeps writers serialized and lets ":memory:" work
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
