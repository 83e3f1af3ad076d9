package schema

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"db-merge/internal/dialect"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuilder(t *testing.T) {
	table, err := NewTable("mytable").
		Column("id", "integer", PrimaryKey(), Identity()).
		Column("value_a", "INTEGER", Field("ValueA")).
		Column("note", "varchar(20)", Nullable(), Length(20), Unique()).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "value_a", "note"}, table.ColumnNames())
	require.Len(t, table.PrimaryKey(), 1)
	assert.Equal(t, "id", table.PrimaryKey()[0].Name)

	c := table.Column("VALUE_A")
	require.NotNil(t, c)
	assert.Equal(t, "ValueA", c.Field)
	assert.Equal(t, "integer", c.Kind)
	assert.Equal(t, "INTEGER", c.DataType)

	note := table.Column("note")
	assert.True(t, note.IsNullable)
	assert.True(t, note.IsUnique)
	assert.Equal(t, 20, note.Length)
	assert.Nil(t, table.Column("missing"))
}

func TestTable_Validate(t *testing.T) {
	testCases := []struct {
		name  string
		table *Table
	}{
		{"nil", nil},
		{"no name", &Table{Columns: []*Column{{Name: "id", IsPK: true}}}},
		{"no columns", &Table{Name: "t"}},
		{"unnamed column", &Table{Name: "t", Columns: []*Column{{Name: "id", IsPK: true}, {}}}},
		{"duplicate column", &Table{Name: "t", Columns: []*Column{{Name: "id", IsPK: true}, {Name: "ID"}}}},
		{"no primary key", &Table{Name: "t", Columns: []*Column{{Name: "id"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.table.Validate())
		})
	}

	assert.Panics(t, func() { NewTable("t").Column("a", "int").MustBuild() })
}

func TestTable_DDLColumns(t *testing.T) {
	table := NewTable("t").
		Column("id", "integer", PrimaryKey(), Identity(), Nullable()).
		Column("note", "text", Nullable()).
		MustBuild()

	cols, pk := table.DDLColumns()
	assert.Equal(t, []string{"id"}, pk)
	assert.Equal(t, []dialect.Column{
		{Name: "id", Type: "integer", Nullable: false, Identity: true},
		{Name: "note", Type: "text", Nullable: true},
	}, cols)
}

func TestLoadTable_SQLite(t *testing.T) {
	db := openSQLite(t, ":memory:")
	d := &dialect.SqliteDialect{}
	ctx := context.Background()

	declared := NewTable("mytable").
		Column("id", "integer", PrimaryKey(), Identity()).
		Column("value_a", "integer").
		Column("value_b", "integer", Nullable()).
		MustBuild()
	require.NoError(t, CreateTable(ctx, db, d, declared))
	// idempotent
	require.NoError(t, CreateTable(ctx, db, d, declared))

	loaded, err := LoadTable(ctx, db, d, "", "MyTable")
	require.NoError(t, err)
	assert.Equal(t, "mytable", loaded.Name)
	assert.Equal(t, []string{"id", "value_a", "value_b"}, loaded.ColumnNames())

	id := loaded.Column("id")
	assert.True(t, id.IsPK)
	assert.True(t, id.IsAutoInc)
	assert.False(t, loaded.Column("value_a").IsPK)
	assert.False(t, loaded.Column("value_a").IsAutoInc)
	assert.False(t, loaded.Column("value_a").IsNullable)
	assert.True(t, loaded.Column("value_b").IsNullable)
	assert.NoError(t, loaded.Validate())

	_, err = LoadTable(ctx, db, d, "", "missing")
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

// mergeOf renders an insert-only merge of one value into col.
func mergeOf(d dialect.Dialect, col *Column) string {
	q := &dialect.MergeQuery{
		Table:   "item",
		Columns: []string{col.Name},
		Types:   []string{col.DataType},
		On:      []dialect.Pair{{Source: col.Name, Target: col.Name}},
		Insert:  []string{col.Name},
		Rows:    [][]interface{}{{"x"}},
	}
	stmts := d.MergeStatements(q)
	return stmts[len(stmts)-1].Query
}

func TestScanColumn_CastsUseFullType(t *testing.T) {
	tests := []struct {
		name     string
		d        dialect.Dialect
		dType    string
		cType    sql.NullString
		length   sql.NullString
		dataType string
		kind     string
		cast     string
	}{
		{"mssql nvarchar", &dialect.MSSQLDialect{}, "nvarchar", ns("nvarchar(200)"), ns("200"), "nvarchar(200)", "varchar", "CAST(@p1 AS nvarchar(200))"},
		{"mssql nvarchar max", &dialect.MSSQLDialect{}, "nvarchar", ns("nvarchar(max)"), ns("-1"), "nvarchar(max)", "varchar", "CAST(@p1 AS nvarchar(max))"},
		{"mssql decimal", &dialect.MSSQLDialect{}, "decimal", ns("decimal(10,2)"), sql.NullString{}, "decimal(10,2)", "decimal", "CAST(@p1 AS decimal(10,2))"},
		{"oracle varchar2", &dialect.OracleDialect{}, "VARCHAR2", ns("VARCHAR2(200)"), ns("200"), "VARCHAR2(200)", "string", "CAST(:1 AS VARCHAR2(200)) name FROM dual"},
		{"oracle number", &dialect.OracleDialect{}, "NUMBER", ns("NUMBER(10,2)"), ns("10"), "NUMBER(10,2)", "integer", "CAST(:1 AS NUMBER(10,2)) name FROM dual"},
		{"postgres varchar", &dialect.PostgresDialect{}, "character varying", ns("varchar"), ns("200"), "varchar", "", "($1::varchar)"},
		{"postgres enum", &dialect.PostgresDialect{}, "USER-DEFINED", ns("mood"), sql.NullString{}, "mood", "", "($1::mood)"},
		{"postgres array", &dialect.PostgresDialect{}, "ARRAY", ns("_int4"), sql.NullString{}, "_int4", "", "($1::_int4)"},
		{"no full type", &dialect.SqliteDialect{}, "TEXT", sql.NullString{}, sql.NullString{}, "TEXT", "", "VALUES (?)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := scanColumn(tt.d, ns("name"), ns(tt.dType), tt.cType, ns("YES"), ns(""), ns(""), ns(""), sql.NullString{}, tt.length)

			assert.Equal(t, tt.dataType, col.DataType)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, col.Kind)
			}
			assert.Contains(t, mergeOf(tt.d, col), tt.cast)
			assert.NotContains(t, mergeOf(tt.d, col), tt.dType+")")
		})
	}
}

func TestLoadTable_CompositeKey(t *testing.T) {
	db := openSQLite(t, ":memory:")
	d := &dialect.SqliteDialect{}
	ctx := context.Background()

	_, err := db.Exec("CREATE TABLE line (order_no INTEGER NOT NULL, line_no INTEGER NOT NULL, sku TEXT, PRIMARY KEY (order_no, line_no))")
	require.NoError(t, err)

	loaded, err := LoadTable(ctx, db, d, "", "line")
	require.NoError(t, err)
	require.Len(t, loaded.PrimaryKey(), 2)
	for _, c := range loaded.PrimaryKey() {
		assert.False(t, c.IsAutoInc, c.Name)
	}
}

func TestTruncate(t *testing.T) {
	db := openSQLite(t, ":memory:")
	d := &dialect.SqliteDialect{}
	ctx := context.Background()

	table := NewTable("t").Column("id", "integer", PrimaryKey()).MustBuild()
	require.NoError(t, CreateTable(ctx, db, d, table))
	_, err := db.Exec("INSERT INTO t (id) VALUES (1), (2)")
	require.NoError(t, err)

	require.NoError(t, Truncate(ctx, db, d, table))
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMigrate_SQLite(t *testing.T) {
	dir := t.TempDir()
	migrations := filepath.Join(dir, "migrations")
	require.NoError(t, os.Mkdir(migrations, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(migrations, "1_mytable.up.sql"),
		[]byte("CREATE TABLE mytable (id INTEGER PRIMARY KEY, value_a INTEGER NOT NULL, value_b INTEGER NOT NULL);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(migrations, "1_mytable.down.sql"),
		[]byte("DROP TABLE mytable;"), 0o644))

	dbFile := filepath.Join(dir, "merge.db")
	version, err := Migrate("file://"+migrations, "sqlite3://"+dbFile)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// a second run has nothing to apply
	version, err = Migrate("file://"+migrations, "sqlite3://"+dbFile)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	db := openSQLite(t, dbFile)
	loaded, err := LoadTable(context.Background(), db, &dialect.SqliteDialect{}, "", "mytable")
	require.NoError(t, err)
	assert.True(t, loaded.Column("id").IsAutoInc)
}
