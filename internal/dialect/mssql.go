package dialect

import (
	"fmt"
	"strings"
)

// MSSQLDialect renders a single MERGE. HOLDLOCK keeps the matched/unmatched
// decision and the writes under one range lock.
type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string {
	return "sqlserver"
}

func (d *MSSQLDialect) GetColumnsQuery(schema string) string {
	// Include PK, UNIQUE constraints, Identity info, and MS_Description (Comment).
	// COLUMN_TYPE is the full declaration; a bare nvarchar cast means nvarchar(30).
	return `
		SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.DATA_TYPE,
			CASE
				WHEN c.DATA_TYPE IN ('varchar', 'nvarchar', 'char', 'nchar', 'varbinary', 'binary')
					THEN c.DATA_TYPE + '(' + CASE WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN 'max'
						ELSE CAST(c.CHARACTER_MAXIMUM_LENGTH AS varchar(10)) END + ')'
				WHEN c.DATA_TYPE IN ('decimal', 'numeric')
					THEN c.DATA_TYPE + '(' + CAST(c.NUMERIC_PRECISION AS varchar(10)) + ',' + CAST(c.NUMERIC_SCALE AS varchar(10)) + ')'
				WHEN c.DATA_TYPE IN ('datetime2', 'time', 'datetimeoffset')
					THEN c.DATA_TYPE + '(' + CAST(c.DATETIME_PRECISION AS varchar(10)) + ')'
				ELSE c.DATA_TYPE
			END AS COLUMN_TYPE,
			c.CHARACTER_MAXIMUM_LENGTH,
			c.IS_NULLABLE,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRIMARY' ELSE '' END AS COLUMN_KEY,
			CASE
				WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE c.COLUMN_DEFAULT
			END AS COLUMN_DEFAULT,
			CASE WHEN uq.COLUMN_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END AS IS_UNIQUE,
			CAST(ep.value AS NVARCHAR(MAX)) AS COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
		) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1
		) uq ON c.TABLE_NAME = uq.TABLE_NAME AND c.COLUMN_NAME = uq.COLUMN_NAME
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND ep.minor_id = c.ORDINAL_POSITION
			AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) source(q *MergeQuery) (string, []interface{}) {
	values, args := valuesRows(q, d.Placeholder, castAs, "")
	return fmt.Sprintf("(VALUES %s) AS source (%s)", values, strings.Join(q.Columns, ", ")), args
}

func (d *MSSQLDialect) MergeStatements(q *MergeQuery) []Statement {
	rel, args := d.source(q)

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s WITH (HOLDLOCK) AS target USING %s ON %s", q.Table, rel, predicate(q.On, "target", "source"))
	if len(q.Update) > 0 {
		fmt.Fprintf(&sb, " WHEN MATCHED THEN UPDATE SET %s", assignments("target", q.Update, "source"))
	}
	if len(q.Insert) > 0 {
		fmt.Fprintf(&sb, " WHEN NOT MATCHED BY TARGET THEN INSERT (%s) VALUES (%s)",
			strings.Join(q.Insert, ", "), qualify("source", q.Insert))
	}
	if q.Delete {
		sb.WriteString(" WHEN NOT MATCHED BY SOURCE THEN DELETE")
	}
	// MERGE must be terminated by a semicolon.
	sb.WriteString(" OUTPUT $action;")

	merge := Statement{Query: sb.String(), Args: args, Action: ActionMerge, Returning: true}
	if len(q.Identity) == 0 {
		return []Statement{merge}
	}
	// Explicit IDENTITY values need IDENTITY_INSERT for the duration of the MERGE.
	return []Statement{
		{Query: fmt.Sprintf("SET IDENTITY_INSERT %s ON", q.Table), Action: ActionSession},
		merge,
		{Query: fmt.Sprintf("SET IDENTITY_INSERT %s OFF", q.Table), Action: ActionSession},
	}
}

func (d *MSSQLDialect) AmbiguityQuery(q *MergeQuery) Statement {
	rel, args := d.source(q)
	return Statement{Query: ambiguityQuery("", rel, q.Table, q.On), Args: args}
}

func (d *MSSQLDialect) CreateTableQuery(table string, cols []Column, pk []string) string {
	defs := columnDefs(cols, func(Column) string { return "IDENTITY(1,1)" })
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", table, table, strings.Join(defs, ", "))
}

func (d *MSSQLDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

// MaxBindParams stays below the 2100 RPC parameter limit.
func (d *MSSQLDialect) MaxBindParams() int {
	return 2000
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float", "real":
		return "float"
	case "datetime", "datetime2", "smalldatetime", "date":
		return "datetime"
	case "image", "binary", "varbinary":
		return "blob"
	default:
		return t
	}
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) GetLimitRowQuery(query string, limit int) string {
	// Simple T-SQL TOP injection
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return strings.Replace(query, "SELECT", fmt.Sprintf("SELECT TOP %d", limit), 1)
	}
	return query
}
