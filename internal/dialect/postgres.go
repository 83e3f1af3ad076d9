package dialect

import (
	"fmt"
	"strings"
)

// PostgresDialect renders a single MERGE statement. NOT MATCHED BY SOURCE and
// RETURNING merge_action() require PostgreSQL 17.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string {
	return "postgres"
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// Returns generic columns matching interface structure.
	// Identity columns have no default, so is_identity is folded into the EXTRA slot.
	return `SELECT
    c.table_name,
    c.column_name,
    c.data_type,
    c.udt_name,
    c.character_maximum_length,
    c.is_nullable,
    (SELECT 'PRI' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
     WHERE tc.constraint_type = 'PRIMARY KEY'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS COLUMN_KEY,
    COALESCE(c.column_default, CASE WHEN c.is_identity = 'YES' THEN 'identity' END),
    (SELECT 'UNIQUE' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
     WHERE tc.constraint_type = 'UNIQUE'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS IS_UNIQUE,
    NULL AS COMMENT
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`
}

// source renders the VALUES relation; parameters are cast so that NULL keys and
// untyped literals resolve against the target column types.
func (d *PostgresDialect) source(q *MergeQuery) (string, []interface{}) {
	values, args := valuesRows(q, d.Placeholder, d.cast, "")
	return fmt.Sprintf("(VALUES %s) AS source (%s)", values, strings.Join(q.Columns, ", ")), args
}

func (d *PostgresDialect) cast(placeholder, sqlType string) string {
	if sqlType == "" {
		return placeholder
	}
	return placeholder + "::" + sqlType
}

func (d *PostgresDialect) MergeStatements(q *MergeQuery) []Statement {
	rel, args := d.source(q)

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s AS target USING %s ON %s", q.Table, rel, predicate(q.On, "target", "source"))
	if len(q.Update) > 0 {
		fmt.Fprintf(&sb, " WHEN MATCHED THEN UPDATE SET %s", assignments("", q.Update, "source"))
	}
	if len(q.Insert) > 0 {
		overriding := ""
		if len(q.Identity) > 0 {
			// also accepted by GENERATED ALWAYS columns
			overriding = " OVERRIDING SYSTEM VALUE"
		}
		fmt.Fprintf(&sb, " WHEN NOT MATCHED BY TARGET THEN INSERT (%s)%s VALUES (%s)",
			strings.Join(q.Insert, ", "), overriding, qualify("source", q.Insert))
	}
	if q.Delete {
		sb.WriteString(" WHEN NOT MATCHED BY SOURCE THEN DELETE")
	}
	sb.WriteString(" RETURNING merge_action()")

	return []Statement{{Query: sb.String(), Args: args, Action: ActionMerge, Returning: true}}
}

func (d *PostgresDialect) AmbiguityQuery(q *MergeQuery) Statement {
	rel, args := d.source(q)
	return Statement{Query: ambiguityQuery("", rel, q.Table, q.On), Args: args}
}

func (d *PostgresDialect) CreateTableQuery(table string, cols []Column, pk []string) string {
	defs := columnDefs(cols, func(Column) string { return "GENERATED BY DEFAULT AS IDENTITY" })
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func (d *PostgresDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

// MaxBindParams is the wire protocol limit on parameters per statement.
func (d *PostgresDialect) MaxBindParams() int {
	return 65535
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "varchar":
		return "varchar"
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
