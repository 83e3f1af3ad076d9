package dialect

import (
	"fmt"
	"strings"
)

// SqliteDialect reconciles with CTE-prefixed DELETE, UPDATE and INSERT
// statements; the target table is referenced by name because SQLite UPDATE
// and DELETE take no alias.
type SqliteDialect struct{}

func (d *SqliteDialect) Name() string {
	return "sqlite3"
}

func (d *SqliteDialect) GetColumnsQuery(schema string) string {
	// A single INTEGER primary key is a rowid alias and is assigned by SQLite.
	return `SELECT
    m.name,
    p.name,
    p.type,
    p.type,
    NULL,
    CASE WHEN p."notnull" = 1 OR p.pk > 0 THEN 'NO' ELSE 'YES' END,
    CASE WHEN p.pk > 0 THEN 'PRI' ELSE '' END,
    CASE WHEN p.pk = 1 AND UPPER(p.type) = 'INTEGER'
         AND (SELECT COUNT(*) FROM pragma_table_info(m.name) k WHERE k.pk > 0) = 1
         THEN 'auto_increment' ELSE '' END,
    NULL,
    NULL
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND ? IS NOT NULL
ORDER BY m.name, p.cid`
}

// with renders the CTE naming the source rows.
func (d *SqliteDialect) with(q *MergeQuery) (string, []interface{}) {
	values, args := valuesRows(q, d.Placeholder, noCast, "")
	return fmt.Sprintf("WITH source (%s) AS (VALUES %s) ", strings.Join(q.Columns, ", "), values), args
}

func (d *SqliteDialect) MergeStatements(q *MergeQuery) []Statement {
	var stmts []Statement
	pred := predicate(q.On, q.Table, "source")

	if q.Delete {
		with, args := d.with(q)
		stmts = append(stmts, Statement{
			Query:  fmt.Sprintf("%sDELETE FROM %s WHERE NOT EXISTS (SELECT 1 FROM source WHERE %s)", with, q.Table, pred),
			Args:   args,
			Action: ActionDelete,
		})
	}
	if len(q.Update) > 0 {
		with, args := d.with(q)
		sets := make([]string, len(q.Update))
		for i, c := range q.Update {
			sets[i] = fmt.Sprintf("%s = (SELECT source.%s FROM source WHERE %s)", c, c, pred)
		}
		stmts = append(stmts, Statement{
			Query: fmt.Sprintf("%sUPDATE %s SET %s WHERE EXISTS (SELECT 1 FROM source WHERE %s)",
				with, q.Table, strings.Join(sets, ", "), pred),
			Args:   args,
			Action: ActionUpdate,
		})
	}
	if len(q.Insert) > 0 {
		with, args := d.with(q)
		stmts = append(stmts, Statement{
			Query: fmt.Sprintf("%sINSERT INTO %s (%s) SELECT %s FROM source WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s)",
				with, q.Table, strings.Join(q.Insert, ", "), qualify("source", q.Insert), q.Table, pred),
			Args:   args,
			Action: ActionInsert,
		})
	}
	return stmts
}

func (d *SqliteDialect) AmbiguityQuery(q *MergeQuery) Statement {
	with, args := d.with(q)
	return Statement{Query: ambiguityQuery(with, "source", q.Table, q.On), Args: args}
}

func (d *SqliteDialect) CreateTableQuery(table string, cols []Column, pk []string) string {
	// A lone identity key becomes the rowid alias; anything else gets a table constraint.
	var rowid string
	if len(pk) == 1 {
		for _, c := range cols {
			if c.Identity && c.Name == pk[0] {
				rowid = c.Name
			}
		}
	}

	defs := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		if c.Name == rowid {
			defs = append(defs, c.Name+" INTEGER PRIMARY KEY")
			continue
		}
		defs = append(defs, columnDefs([]Column{c}, func(Column) string { return "" })...)
	}
	if rowid == "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func (d *SqliteDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *SqliteDialect) Placeholder(index int) string {
	return "?"
}

// MaxBindParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite 3.32+.
func (d *SqliteDialect) MaxBindParams() int {
	return 32766
}

func (d *SqliteDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *SqliteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

func (d *SqliteDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
