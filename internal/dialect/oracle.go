package dialect

import (
	"fmt"
	"strings"
)

// OracleDialect merges with MERGE INTO ... USING a dual UNION ALL relation.
// Oracle MERGE has no NOT MATCHED BY SOURCE branch, so deletes run as a
// separate statement in the same transaction.
type OracleDialect struct{}

func (d *OracleDialect) Name() string {
	return "oracle"
}

func (d *OracleDialect) GetColumnsQuery(schema string) string {
	// Retrieves column information for the current user's tables.
	// We join with USER_CONS_COLUMNS to identify Primary Keys (P) and Unique (U) constraints.
	// The fourth column is a complete type: CAST(:1 AS VARCHAR2) without a length is invalid.
	return `
SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    t.DATA_TYPE,
    CASE
        WHEN t.DATA_TYPE IN ('VARCHAR2', 'CHAR', 'RAW') THEN t.DATA_TYPE || '(' || t.DATA_LENGTH || ')'
        WHEN t.DATA_TYPE IN ('NVARCHAR2', 'NCHAR') THEN t.DATA_TYPE || '(' || t.CHAR_LENGTH || ')'
        WHEN t.DATA_TYPE = 'NUMBER' AND t.DATA_PRECISION IS NOT NULL
            THEN 'NUMBER(' || t.DATA_PRECISION || ',' || NVL(t.DATA_SCALE, 0) || ')'
        ELSE t.DATA_TYPE
    END,
    COALESCE(t.DATA_PRECISION, t.DATA_LENGTH),
    CASE t.NULLABLE WHEN 'Y' THEN 'YES' ELSE 'NO' END,
    CASE WHEN p.CONSTRAINT_NAME IS NOT NULL THEN 'PRI' ELSE '' END,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END,
    CASE WHEN u.CONSTRAINT_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END,
    c.COMMENTS
FROM USER_TAB_COLUMNS t
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'P'
) p ON t.TABLE_NAME = p.TABLE_NAME AND t.COLUMN_NAME = p.COLUMN_NAME
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'U'
) u ON t.TABLE_NAME = u.TABLE_NAME AND t.COLUMN_NAME = u.COLUMN_NAME
LEFT JOIN USER_COL_COMMENTS c ON t.TABLE_NAME = c.TABLE_NAME AND t.COLUMN_NAME = c.COLUMN_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

// source renders "(SELECT :1 a, :2 b FROM dual UNION ALL SELECT :3, :4 FROM dual) source".
func (d *OracleDialect) source(q *MergeQuery) (string, []interface{}) {
	args := make([]interface{}, 0, len(q.Rows)*len(q.Columns))
	selects := make([]string, len(q.Rows))
	for i, row := range q.Rows {
		offset := len(args)
		selects[i] = "SELECT " + GeneratePlaceholders(len(q.Columns), func(j int) string {
			item := castAs(d.Placeholder(offset+j), columnType(q, j))
			if i == 0 {
				item += " " + q.Columns[j]
			}
			return item
		}) + " FROM dual"
		args = append(args, row[:len(q.Columns)]...)
	}
	return "(" + strings.Join(selects, " UNION ALL ") + ") source", args
}

func (d *OracleDialect) MergeStatements(q *MergeQuery) []Statement {
	var stmts []Statement
	pred := predicate(q.On, "target", "source")

	if q.Delete {
		rel, args := d.source(q)
		stmts = append(stmts, Statement{
			Query:  fmt.Sprintf("DELETE FROM %s target WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s)", q.Table, rel, pred),
			Args:   args,
			Action: ActionDelete,
		})
	}
	if len(q.Update) == 0 && len(q.Insert) == 0 {
		return stmts
	}

	rel, args := d.source(q)
	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s target USING %s ON (%s)", q.Table, rel, pred)
	if len(q.Update) > 0 {
		fmt.Fprintf(&sb, " WHEN MATCHED THEN UPDATE SET %s", assignments("target", q.Update, "source"))
	}
	if len(q.Insert) > 0 {
		fmt.Fprintf(&sb, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
			strings.Join(q.Insert, ", "), qualify("source", q.Insert))
	}
	action := ActionMerge
	switch {
	case len(q.Update) == 0:
		action = ActionInsert
	case len(q.Insert) == 0:
		action = ActionUpdate
	}
	return append(stmts, Statement{Query: sb.String(), Args: args, Action: action})
}

func (d *OracleDialect) AmbiguityQuery(q *MergeQuery) Statement {
	rel, args := d.source(q)
	return Statement{Query: ambiguityQuery("", rel, q.Table, q.On), Args: args}
}

func (d *OracleDialect) CreateTableQuery(table string, cols []Column, pk []string) string {
	defs := columnDefs(cols, func(Column) string { return "GENERATED BY DEFAULT ON NULL AS IDENTITY" })
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

func (d *OracleDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) MaxBindParams() int {
	return 32767
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := strings.ToLower(sqlType)
	if strings.Contains(s, "char") || strings.Contains(s, "clob") {
		return "string"
	}
	if strings.Contains(s, "int") || strings.Contains(s, "number") || strings.Contains(s, "float") {
		return "integer"
	}
	if strings.Contains(s, "date") || strings.Contains(s, "time") || strings.Contains(s, "year") {
		return "datetime"
	}
	return s
}

// GetSchemaName never returns "": Oracle binds an empty string as NULL, which would empty
// the introspection query.
func (d *OracleDialect) GetSchemaName(input string) string {
	if input == "" {
		return "USER"
	}
	return input
}

func (d *OracleDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, limit)
}
