package dialect

import (
	"fmt"
	"strings"
)

// MysqlDialect has no MERGE; it reconciles with DELETE, UPDATE ... JOIN and
// INSERT ... SELECT over a VALUES ROW() derived table (MySQL 8.0.19+).
// UPDATE reports changed rows only unless the DSN sets clientFoundRows=true.
type MysqlDialect struct{}

func (d *MysqlDialect) Name() string {
	return "mysql"
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	return `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE, COLUMN_KEY, EXTRA, IF(COLUMN_KEY='UNI', 'UNIQUE', NULL) AS IS_UNIQUE, COLUMN_COMMENT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) source(q *MergeQuery) (string, []interface{}) {
	values, args := valuesRows(q, d.Placeholder, noCast, "ROW")
	return fmt.Sprintf("(VALUES %s) AS source (%s)", values, strings.Join(q.Columns, ", ")), args
}

func (d *MysqlDialect) MergeStatements(q *MergeQuery) []Statement {
	var stmts []Statement
	pred := predicate(q.On, "target", "source")

	if q.Delete {
		rel, args := d.source(q)
		stmts = append(stmts, Statement{
			Query:  fmt.Sprintf("DELETE target FROM %s AS target WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s)", q.Table, rel, pred),
			Args:   args,
			Action: ActionDelete,
		})
	}
	if len(q.Update) > 0 {
		rel, args := d.source(q)
		stmts = append(stmts, Statement{
			Query:  fmt.Sprintf("UPDATE %s AS target JOIN %s ON %s SET %s", q.Table, rel, pred, assignments("target", q.Update, "source")),
			Args:   args,
			Action: ActionUpdate,
		})
	}
	if len(q.Insert) > 0 {
		rel, args := d.source(q)
		stmts = append(stmts, Statement{
			Query: fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s WHERE NOT EXISTS (SELECT 1 FROM %s AS target WHERE %s)",
				q.Table, strings.Join(q.Insert, ", "), qualify("source", q.Insert), rel, q.Table, pred),
			Args:   args,
			Action: ActionInsert,
		})
	}
	return stmts
}

func (d *MysqlDialect) AmbiguityQuery(q *MergeQuery) Statement {
	rel, args := d.source(q)
	return Statement{Query: ambiguityQuery("", rel, q.Table, q.On), Args: args}
}

func (d *MysqlDialect) CreateTableQuery(table string, cols []Column, pk []string) string {
	defs := columnDefs(cols, func(Column) string { return "AUTO_INCREMENT" })
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) MaxBindParams() int {
	return 65535
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
