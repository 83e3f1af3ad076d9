package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-merge/internal/dialect"

	"github.com/pkg/errors"
)

// ErrTableNotFound is returned by LoadTable when the schema has no such table.
var ErrTableNotFound = errors.New("table not found")

// Querier is the read side of *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// LoadTable builds a descriptor for one table from the live catalog.
func LoadTable(ctx context.Context, db Querier, d dialect.Dialect, schemaName, tableName string) (*Table, error) {
	// [Interface-First]: Delegate schema resolution to the dialect
	target := d.GetSchemaName(schemaName)

	colRows, err := db.QueryContext(ctx, d.GetColumnsQuery(target), target)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query columns")
	}
	defer colRows.Close()

	table := &Table{Name: tableName}
	for colRows.Next() {
		var tName, cName, dType, cType, isNull, cKey, extra, isUnique, comment sql.NullString
		var cLen sql.NullString // Use String for safety

		if err := colRows.Scan(&tName, &cName, &dType, &cType, &cLen, &isNull, &cKey, &extra, &isUnique, &comment); err != nil {
			return nil, errors.Wrapf(err, "failed to scan column (table: %s)", tName.String)
		}

		if !tName.Valid || !cName.Valid {
			continue // Skip invalid rows
		}
		// Case-insensitive match (Oracle stores names upper case)
		if !strings.EqualFold(tName.String, tableName) {
			continue
		}
		table.Name = tName.String
		table.Columns = append(table.Columns, scanColumn(d, cName, dType, cType, isNull, cKey, extra, isUnique, comment, cLen))
	}
	if err := colRows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating columns")
	}

	if len(table.Columns) == 0 {
		return nil, errors.Wrapf(ErrTableNotFound, "%s.%s", target, tableName)
	}
	return table, nil
}

// scanColumn maps one catalog row onto a Column. dType is the bare type name
// and drives Kind; cType is the full declaration (length, precision or the
// Postgres udt name) and becomes DataType, which dialects use as a bind cast.
func scanColumn(d dialect.Dialect, cName, dType, cType, isNull, cKey, extra, isUnique, comment, cLen sql.NullString) *Column {
	// PK Detection
	isPK := strings.Contains(cKey.String, "PRI") || strings.Contains(cKey.String, "PRIMARY")

	// AutoInc Detection
	isAutoInc := false
	if extra.Valid {
		extraLower := strings.ToLower(extra.String)
		isAutoInc = strings.Contains(extraLower, "auto_increment") ||
			strings.Contains(extraLower, "identity") ||
			strings.Contains(extraLower, "nextval")
	}

	dataType := dType.String
	if cType.Valid && cType.String != "" {
		dataType = cType.String
	}

	col := &Column{
		Field:      cName.String,
		Name:       cName.String,
		DataType:   dataType,
		Kind:       d.NormalizeType(dType.String),
		IsNullable: isNull.String == "YES",
		IsPK:       isPK,
		IsAutoInc:  isAutoInc,
		IsUnique:   isUnique.Valid && strings.Contains(isUnique.String, "UNIQUE"),
		Comment:    comment.String,
	}

	// Handle Length safely
	if cLen.Valid && cLen.String != "" {
		var length int
		if _, err := fmt.Sscanf(cLen.String, "%d", &length); err == nil {
			col.Length = length
		} else {
			var fLength float64
			if _, err := fmt.Sscanf(cLen.String, "%f", &fLength); err == nil {
				col.Length = int(fLength)
			}
		}
	}
	return col
}
