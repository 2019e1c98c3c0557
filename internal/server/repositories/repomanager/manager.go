package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/history"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/notes"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/orders"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so that services
// can use the same repositories inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Notes(db dbx.DBTX) notes.Repository
	Orders(db dbx.DBTX) orders.Repository
	History(db dbx.DBTX) history.Repository
}
