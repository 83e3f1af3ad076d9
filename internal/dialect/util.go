package dialect

import (
	"fmt"
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultNormalizeType is a default implementation for type normalization (lowercase).
func DefaultNormalizeType(sqlType string) string {
	return strings.ToLower(sqlType)
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

// noCast binds a value without a type annotation.
func noCast(placeholder, _ string) string {
	return placeholder
}

// castAs renders the ANSI CAST form used by SQL Server and Oracle.
func castAs(placeholder, sqlType string) string {
	if sqlType == "" {
		return placeholder
	}
	return fmt.Sprintf("CAST(%s AS %s)", placeholder, sqlType)
}

// valuesRows renders "(p1, p2), (p3, p4)" for q.Rows with rowKeyword prefixed to
// every tuple (MySQL needs ROW) and returns the flattened arguments.
func valuesRows(q *MergeQuery, placeholder func(int) string, cast func(string, string) string, rowKeyword string) (string, []interface{}) {
	args := make([]interface{}, 0, len(q.Rows)*len(q.Columns))
	tuples := make([]string, len(q.Rows))
	for i, row := range q.Rows {
		offset := len(args)
		tuples[i] = rowKeyword + "(" + GeneratePlaceholders(len(q.Columns), func(j int) string {
			return cast(placeholder(offset+j), columnType(q, j))
		}) + ")"
		args = append(args, row[:len(q.Columns)]...)
	}
	return strings.Join(tuples, ", "), args
}

func columnType(q *MergeQuery, i int) string {
	if i < len(q.Types) {
		return q.Types[i]
	}
	return ""
}

// predicate renders the equality conjunction between target and source aliases.
func predicate(on []Pair, target, source string) string {
	terms := make([]string, len(on))
	for i, p := range on {
		terms[i] = fmt.Sprintf("%s.%s = %s.%s", target, p.Target, source, p.Source)
	}
	return strings.Join(terms, " AND ")
}

// qualify prefixes every column with alias.
func qualify(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

// assignments renders "lhs.c = source.c" pairs; lhs may be empty.
func assignments(lhs string, cols []string, source string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		left := c
		if lhs != "" {
			left = lhs + "." + c
		}
		out[i] = fmt.Sprintf("%s = %s.%s", left, source, c)
	}
	return strings.Join(out, ", ")
}

// sourceKeys lists the source side of the predicate.
func sourceKeys(on []Pair) []string {
	keys := make([]string, len(on))
	for i, p := range on {
		keys[i] = p.Source
	}
	return keys
}

// ambiguityQuery counts source keys joined to more than one target row.
// prefix is prepended verbatim (SQLite uses it for its CTE).
func ambiguityQuery(prefix, sourceRel, table string, on []Pair) string {
	return fmt.Sprintf("%sSELECT COUNT(*) FROM (SELECT 1 AS hit FROM %s JOIN %s target ON %s GROUP BY %s HAVING COUNT(*) > 1) ambiguous",
		prefix, sourceRel, table, predicate(on, "target", "source"), qualify("source", sourceKeys(on)))
}

// columnDefs renders the column list of a CREATE TABLE statement.
func columnDefs(cols []Column, identity func(Column) string) []string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		def := c.Name + " " + c.Type
		if c.Identity {
			if clause := identity(c); clause != "" {
				def += " " + clause
			}
		}
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	return defs
}
