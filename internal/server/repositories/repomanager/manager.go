package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/capsulekeeper/internal/dbx"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/capsules"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/codes"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a connection or to a
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Capsules(db dbx.DBTX) capsules.Repository
	Codes(db dbx.DBTX) codes.Repository
	Tokens(db dbx.DBTX) tokens.Repository
}
