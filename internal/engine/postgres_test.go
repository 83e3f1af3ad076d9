package engine

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"db-merge/internal/dialect"
	"db-merge/internal/schema"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openPostgres connects to DB_MERGE_POSTGRES_DSN (PostgreSQL 17+) or skips.
func openPostgres(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DB_MERGE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DB_MERGE_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	return db
}

func resetPostgresTable(t *testing.T, db *sql.DB, table *schema.Table) {
	t.Helper()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table.Name)
	require.NoError(t, err)
	require.NoError(t, schema.CreateTable(ctx, db, &dialect.PostgresDialect{}, table))
	t.Cleanup(func() { db.Exec("DROP TABLE IF EXISTS " + table.Name) })
}

func TestPostgres_MergeScenarios(t *testing.T) {
	db := openPostgres(t)
	d := &dialect.PostgresDialect{}
	ctx := context.Background()

	t.Run("explicit columns", func(t *testing.T) {
		resetPostgresTable(t, db, myTable())
		result, err := Merge(ctx, db, d, myTable(), fourItems(),
			On(Pair{Source: "value_a", Target: "value_a"}, Pair{Source: "value_b", Target: "value_b"}),
			InsertWhenNotMatched)
		require.NoError(t, err)
		assert.Equal(t, 4, result.Affected)
		assert.Equal(t, 4, result.Inserted)
	})

	t.Run("primary key", func(t *testing.T) {
		resetPostgresTable(t, db, myTable())
		result, err := Merge(ctx, db, d, myTable(), fourItems(), ByPrimaryKey(), InsertWhenNotMatched)
		require.NoError(t, err)
		assert.Equal(t, 4, result.Affected)
		assert.Equal(t, 4, countRows(t, db, "SELECT COUNT(DISTINCT id) FROM mytable"))
	})

	t.Run("full reconcile", func(t *testing.T) {
		resetPostgresTable(t, db, stockTable())
		seed := []Record{{"code": "a", "qty": 1}, {"code": "b", "qty": 2}}
		_, err := Merge(ctx, db, d, stockTable(), seed, OnColumns("code"), InsertWhenNotMatched)
		require.NoError(t, err)

		result, err := Merge(ctx, db, d, stockTable(),
			[]Record{{"code": "b", "qty": 20}, {"code": "c", "qty": 3}},
			OnColumns("code"), InsertWhenNotMatched|UpdateWhenMatched|DeleteWhenNotMatchedBySource)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Affected)
		assert.Equal(t, 1, result.Inserted)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 1, result.Deleted)
		assert.Equal(t, 1, result.Statements)
	})
}
