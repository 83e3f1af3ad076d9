package schema

import (
	"strings"

	"db-merge/internal/dialect"

	"github.com/pkg/errors"
)

// Table describes a merge target: its name and the flattened column list.
type Table struct {
	Name    string
	Columns []*Column
}

// Column describes one storage column of a Table.
type Column struct {
	Field      string // logical field name, defaults to Name
	Name       string // storage column name
	DataType   string // SQL type as declared, used for DDL and bind casts
	Kind       string // normalized type, used for value generation
	Length     int
	IsNullable bool
	IsPK       bool
	IsAutoInc  bool
	IsUnique   bool
	Comment    string
}

// Column returns the column with the given storage name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// PrimaryKey returns the primary key columns in column order.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.IsPK {
			pk = append(pk, c)
		}
	}
	return pk
}

// ColumnNames returns the storage names of all columns.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks the descriptor invariants: a name, at least one column,
// unique column names, and a non-empty primary key.
func (t *Table) Validate() error {
	if t == nil || t.Name == "" {
		return errors.New("table name is empty")
	}
	if len(t.Columns) == 0 {
		return errors.Errorf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return errors.Errorf("table %s has a column without a name", t.Name)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return errors.Errorf("table %s declares column %s twice", t.Name, c.Name)
		}
		seen[key] = true
	}
	if len(t.PrimaryKey()) == 0 {
		return errors.Errorf("table %s has no primary key", t.Name)
	}
	return nil
}

// DDLColumns converts the descriptor into dialect column definitions.
func (t *Table) DDLColumns() ([]dialect.Column, []string) {
	cols := make([]dialect.Column, len(t.Columns))
	var pk []string
	for i, c := range t.Columns {
		cols[i] = dialect.Column{
			Name:     c.Name,
			Type:     c.DataType,
			Nullable: c.IsNullable && !c.IsPK,
			Identity: c.IsAutoInc,
		}
		if c.IsPK {
			pk = append(pk, c.Name)
		}
	}
	return cols, pk
}
