package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuery() *MergeQuery {
	return &MergeQuery{
		Table:   "mytable",
		Columns: []string{"id", "value_a", "value_b"},
		Types:   []string{"integer", "integer", "integer"},
		On:      []Pair{{Source: "value_a", Target: "value_a"}},
		Insert:  []string{"value_a", "value_b"},
		Update:  []string{"value_b"},
		Delete:  true,
		Rows: [][]interface{}{
			{nil, 1, 1},
			{nil, 2, 2},
		},
	}
}

func TestPostgres_MergeStatements(t *testing.T) {
	stmts := (&PostgresDialect{}).MergeStatements(sampleQuery())
	require.Len(t, stmts, 1)

	assert.Equal(t, "MERGE INTO mytable AS target USING "+
		"(VALUES ($1::integer, $2::integer, $3::integer), ($4::integer, $5::integer, $6::integer)) AS source (id, value_a, value_b) "+
		"ON target.value_a = source.value_a "+
		"WHEN MATCHED THEN UPDATE SET value_b = source.value_b "+
		"WHEN NOT MATCHED BY TARGET THEN INSERT (value_a, value_b) VALUES (source.value_a, source.value_b) "+
		"WHEN NOT MATCHED BY SOURCE THEN DELETE RETURNING merge_action()", stmts[0].Query)
	assert.Equal(t, []interface{}{nil, 1, 1, nil, 2, 2}, stmts[0].Args)
	assert.True(t, stmts[0].Returning)
	assert.Equal(t, ActionMerge, stmts[0].Action)
}

func TestPostgres_InsertOnly(t *testing.T) {
	q := sampleQuery()
	q.Update, q.Delete = nil, false
	q.Types = nil

	stmts := (&PostgresDialect{}).MergeStatements(q)
	require.Len(t, stmts, 1)
	assert.NotContains(t, stmts[0].Query, "WHEN MATCHED")
	assert.NotContains(t, stmts[0].Query, "BY SOURCE")
	assert.Contains(t, stmts[0].Query, "(VALUES ($1, $2, $3), ($4, $5, $6))")
}

func TestPostgres_SuppliedIdentity(t *testing.T) {
	q := sampleQuery()
	q.Insert = []string{"id", "value_a", "value_b"}
	q.Identity = []string{"id"}

	stmts := (&PostgresDialect{}).MergeStatements(q)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0].Query,
		"INSERT (id, value_a, value_b) OVERRIDING SYSTEM VALUE VALUES (source.id, source.value_a, source.value_b)")
}

func TestMSSQL_MergeStatements(t *testing.T) {
	stmts := (&MSSQLDialect{}).MergeStatements(sampleQuery())
	require.Len(t, stmts, 1)

	query := stmts[0].Query
	assert.Contains(t, query, "MERGE INTO mytable WITH (HOLDLOCK) AS target USING (VALUES (CAST(@p1 AS integer)")
	assert.Contains(t, query, "CAST(@p6 AS integer))) AS source (id, value_a, value_b)")
	assert.Contains(t, query, "WHEN MATCHED THEN UPDATE SET target.value_b = source.value_b")
	assert.Contains(t, query, "WHEN NOT MATCHED BY SOURCE THEN DELETE")
	assert.True(t, stmts[0].Returning)
	assert.Regexp(t, `OUTPUT \$action;$`, query)
}

func TestMSSQL_SuppliedIdentity(t *testing.T) {
	q := sampleQuery()
	q.Rows = [][]interface{}{{100, 1, 1}, {200, 2, 2}}
	q.Insert = []string{"id", "value_a", "value_b"}
	q.Identity = []string{"id"}

	stmts := (&MSSQLDialect{}).MergeStatements(q)
	require.Len(t, stmts, 3)
	assert.Equal(t, "SET IDENTITY_INSERT mytable ON", stmts[0].Query)
	assert.Equal(t, ActionSession, stmts[0].Action)
	assert.Contains(t, stmts[1].Query, "INSERT (id, value_a, value_b) VALUES (source.id, source.value_a, source.value_b)")
	assert.Equal(t, []interface{}{100, 1, 1, 200, 2, 2}, stmts[1].Args)
	assert.Equal(t, "SET IDENTITY_INSERT mytable OFF", stmts[2].Query)
	assert.Equal(t, ActionSession, stmts[2].Action)
}

func TestOracle_MergeStatements(t *testing.T) {
	stmts := (&OracleDialect{}).MergeStatements(sampleQuery())
	require.Len(t, stmts, 2)

	assert.Equal(t, ActionDelete, stmts[0].Action)
	assert.Contains(t, stmts[0].Query, "DELETE FROM mytable target WHERE NOT EXISTS")
	assert.Contains(t, stmts[0].Query, "SELECT CAST(:1 AS integer) id, CAST(:2 AS integer) value_a, CAST(:3 AS integer) value_b FROM dual UNION ALL SELECT CAST(:4 AS integer), ")

	assert.Equal(t, ActionMerge, stmts[1].Action)
	assert.Contains(t, stmts[1].Query, "MERGE INTO mytable target USING (")
	assert.Contains(t, stmts[1].Query, "ON (target.value_a = source.value_a)")
	assert.Contains(t, stmts[1].Query, "WHEN NOT MATCHED THEN INSERT (value_a, value_b) VALUES (source.value_a, source.value_b)")
	assert.Len(t, stmts[1].Args, 6)

	q := sampleQuery()
	q.Update, q.Delete = nil, false
	stmts = (&OracleDialect{}).MergeStatements(q)
	require.Len(t, stmts, 1)
	assert.Equal(t, ActionInsert, stmts[0].Action)
}

func TestMysql_MergeStatements(t *testing.T) {
	stmts := (&MysqlDialect{}).MergeStatements(sampleQuery())
	require.Len(t, stmts, 3)

	assert.Equal(t, []Action{ActionDelete, ActionUpdate, ActionInsert},
		[]Action{stmts[0].Action, stmts[1].Action, stmts[2].Action})
	assert.Contains(t, stmts[0].Query, "DELETE target FROM mytable AS target WHERE NOT EXISTS")
	assert.Contains(t, stmts[1].Query, "UPDATE mytable AS target JOIN (VALUES ROW(?, ?, ?), ROW(?, ?, ?)) AS source (id, value_a, value_b)")
	assert.Contains(t, stmts[1].Query, "SET target.value_b = source.value_b")
	assert.Contains(t, stmts[2].Query, "INSERT INTO mytable (value_a, value_b) SELECT source.value_a, source.value_b FROM")
	for _, stmt := range stmts {
		assert.Len(t, stmt.Args, 6)
		assert.False(t, stmt.Returning)
	}
}

func TestSqlite_MergeStatements(t *testing.T) {
	stmts := (&SqliteDialect{}).MergeStatements(sampleQuery())
	require.Len(t, stmts, 3)

	with := "WITH source (id, value_a, value_b) AS (VALUES (?, ?, ?), (?, ?, ?)) "
	assert.Equal(t, with+"DELETE FROM mytable WHERE NOT EXISTS (SELECT 1 FROM source WHERE mytable.value_a = source.value_a)", stmts[0].Query)
	assert.Equal(t, with+"UPDATE mytable SET value_b = (SELECT source.value_b FROM source WHERE mytable.value_a = source.value_a) "+
		"WHERE EXISTS (SELECT 1 FROM source WHERE mytable.value_a = source.value_a)", stmts[1].Query)
	assert.Equal(t, with+"INSERT INTO mytable (value_a, value_b) SELECT source.value_a, source.value_b FROM source "+
		"WHERE NOT EXISTS (SELECT 1 FROM mytable WHERE mytable.value_a = source.value_a)", stmts[2].Query)
}

func TestAmbiguityQuery(t *testing.T) {
	q := sampleQuery()

	stmt := (&PostgresDialect{}).AmbiguityQuery(q)
	assert.Contains(t, stmt.Query, "SELECT COUNT(*) FROM (SELECT 1 AS hit FROM (VALUES")
	assert.Contains(t, stmt.Query, "JOIN mytable target ON target.value_a = source.value_a GROUP BY source.value_a HAVING COUNT(*) > 1) ambiguous")
	assert.Len(t, stmt.Args, 6)

	stmt = (&SqliteDialect{}).AmbiguityQuery(q)
	assert.Regexp(t, `^WITH source \(id, value_a, value_b\) AS \(VALUES .*\) SELECT COUNT\(\*\) FROM \(SELECT 1 AS hit FROM source JOIN`, stmt.Query)
}

func TestCreateTableQuery(t *testing.T) {
	cols := []Column{
		{Name: "id", Type: "integer", Identity: true},
		{Name: "value_a", Type: "integer"},
		{Name: "note", Type: "varchar(20)", Nullable: true},
	}
	pk := []string{"id"}

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS t (id integer GENERATED BY DEFAULT AS IDENTITY NOT NULL, value_a integer NOT NULL, note varchar(20), PRIMARY KEY (id))",
		(&PostgresDialect{}).CreateTableQuery("t", cols, pk))
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, value_a integer NOT NULL, note varchar(20))",
		(&SqliteDialect{}).CreateTableQuery("t", cols, pk))
	assert.Contains(t, (&MysqlDialect{}).CreateTableQuery("t", cols, pk), "id integer AUTO_INCREMENT NOT NULL")
	assert.Contains(t, (&MSSQLDialect{}).CreateTableQuery("t", cols, pk), "IF OBJECT_ID(N't', N'U') IS NULL CREATE TABLE t (id integer IDENTITY(1,1) NOT NULL")
	assert.Contains(t, (&OracleDialect{}).CreateTableQuery("t", cols, pk), "id integer GENERATED BY DEFAULT ON NULL AS IDENTITY NOT NULL")

	composite := (&SqliteDialect{}).CreateTableQuery("t", cols[1:], []string{"value_a", "note"})
	assert.Contains(t, composite, "PRIMARY KEY (value_a, note)")
}

func TestPlaceholders(t *testing.T) {
	testCases := []struct {
		dialect  Dialect
		expected string
	}{
		{&PostgresDialect{}, "$1, $2, $3"},
		{&MSSQLDialect{}, "@p1, @p2, @p3"},
		{&OracleDialect{}, ":1, :2, :3"},
		{&MysqlDialect{}, "?, ?, ?"},
		{&SqliteDialect{}, "?, ?, ?"},
	}
	for _, tc := range testCases {
		t.Run(tc.dialect.Name(), func(t *testing.T) {
			assert.Equal(t, tc.expected, GeneratePlaceholders(3, tc.dialect.Placeholder))
		})
	}
}

func TestGetDialect(t *testing.T) {
	for driver, name := range map[string]string{
		"postgres":  "postgres",
		"pgx":       "postgres",
		"sqlserver": "sqlserver",
		"mssql":     "sqlserver",
		"oracle":    "oracle",
		"mysql":     "mysql",
		"sqlite3":   "sqlite3",
	} {
		d, err := GetDialect(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, name, d.Name())
	}

	_, err := GetDialect("db2")
	assert.Error(t, err)
}

func TestSchemaNameAndLimit(t *testing.T) {
	assert.Equal(t, "public", (&PostgresDialect{}).GetSchemaName(""))
	assert.Equal(t, "dbo", (&MSSQLDialect{}).GetSchemaName(""))
	assert.Equal(t, "main", (&SqliteDialect{}).GetSchemaName(""))
	assert.Equal(t, "USER", (&OracleDialect{}).GetSchemaName(""))
	assert.Equal(t, "app", (&MysqlDialect{}).GetSchemaName("app"))

	assert.Equal(t, "SELECT TOP 5 * FROM t", (&MSSQLDialect{}).GetLimitRowQuery("SELECT * FROM t", 5))
	assert.Equal(t, "SELECT * FROM t LIMIT 5", (&PostgresDialect{}).GetLimitRowQuery("SELECT * FROM t", 5))
	assert.Equal(t, "SELECT * FROM (SELECT * FROM t) WHERE ROWNUM <= 5", (&OracleDialect{}).GetLimitRowQuery("SELECT * FROM t", 5))
}
