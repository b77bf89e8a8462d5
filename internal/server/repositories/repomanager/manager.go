// Package repomanager vends credential-store implementations and runs schema
// migrations for the PostgreSQL backend.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/contactsapi/internal/dbx"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/accounts"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
}
