package cmd

import (
	"context"
	"database/sql"
	"testing"

	"db-merge/internal/dialect"
	"db-merge/internal/schema"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	prev := DB
	DB = db
	t.Cleanup(func() {
		DB = prev
		db.Close()
	})
	return db
}

func TestCleanDatabase_ContinuesPastFailedTable(t *testing.T) {
	db := useSQLite(t)
	d := &dialect.SqliteDialect{}
	ctx := context.Background()

	kept := schema.NewTable("mytable").
		Column("id", "integer", schema.PrimaryKey(), schema.Identity()).
		Column("value_a", "integer").
		MustBuild()
	missing := schema.NewTable("missing").
		Column("id", "integer", schema.PrimaryKey()).
		MustBuild()
	require.NoError(t, schema.CreateTable(ctx, db, d, kept))
	_, err := db.Exec("INSERT INTO mytable (value_a) VALUES (1), (2)")
	require.NoError(t, err)

	// reverse order: missing is truncated first and fails
	err = cleanDatabase(ctx, []*schema.Table{kept, missing}, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 tables")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM mytable").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestCleanDatabase(t *testing.T) {
	db := useSQLite(t)
	d := &dialect.SqliteDialect{}
	ctx := context.Background()

	table := schema.NewTable("mytable").
		Column("id", "integer", schema.PrimaryKey(), schema.Identity()).
		MustBuild()
	require.NoError(t, schema.CreateTable(ctx, db, d, table))
	_, err := db.Exec("INSERT INTO mytable (id) VALUES (1)")
	require.NoError(t, err)

	require.NoError(t, cleanDatabase(ctx, []*schema.Table{table}, d))
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM mytable").Scan(&n))
	assert.Equal(t, 0, n)
}
