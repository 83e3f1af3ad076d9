package schema

import (
	"context"
	"database/sql"

	"db-merge/internal/dialect"

	"github.com/pkg/errors"
)

// Execer is the write side of *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CreateTable creates t unless it already exists (Oracle always attempts it).
func CreateTable(ctx context.Context, db Execer, d dialect.Dialect, t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cols, pk := t.DDLColumns()
	if _, err := db.ExecContext(ctx, d.CreateTableQuery(t.Name, cols, pk)); err != nil {
		return errors.Wrapf(err, "failed to create table %s", t.Name)
	}
	return nil
}

// Truncate removes every row of t.
func Truncate(ctx context.Context, db Execer, d dialect.Dialect, t *Table) error {
	if _, err := db.ExecContext(ctx, d.TruncateQuery(t.Name)); err != nil {
		return errors.Wrapf(err, "failed to clean %s", t.Name)
	}
	return nil
}
