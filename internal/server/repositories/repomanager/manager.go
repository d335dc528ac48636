package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/externallogins"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/tokens"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services decide the transaction boundaries.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Roles(db dbx.DBTX) roles.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	Attempts(db dbx.DBTX) attempts.Repository
	ExternalLogins(db dbx.DBTX) externallogins.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
