package schema

import "strings"

// ColumnOption adjusts a column while it is declared.
type ColumnOption func(*Column)

// PrimaryKey marks the column as part of the primary key.
func PrimaryKey() ColumnOption {
	return func(c *Column) { c.IsPK = true }
}

// Identity marks the column as assigned by storage on insert.
func Identity() ColumnOption {
	return func(c *Column) { c.IsAutoInc = true }
}

// Nullable allows NULL values in the column.
func Nullable() ColumnOption {
	return func(c *Column) { c.IsNullable = true }
}

// Unique marks the column as carrying a unique constraint.
func Unique() ColumnOption {
	return func(c *Column) { c.IsUnique = true }
}

// Field sets the logical field name when it differs from the column name.
func Field(name string) ColumnOption {
	return func(c *Column) { c.Field = name }
}

// Length sets the declared length of a character column.
func Length(n int) ColumnOption {
	return func(c *Column) { c.Length = n }
}

// Builder declares a Table in code. Columns contributed by different layers
// of a record type are simply listed one after another.
type Builder struct {
	table *Table
}

// NewTable starts a descriptor for the named table.
func NewTable(name string) *Builder {
	return &Builder{table: &Table{Name: name}}
}

// Column appends a column.
func (b *Builder) Column(name, dataType string, opts ...ColumnOption) *Builder {
	c := &Column{
		Field:    name,
		Name:     name,
		DataType: dataType,
		Kind:     strings.ToLower(dataType),
	}
	for _, opt := range opts {
		opt(c)
	}
	b.table.Columns = append(b.table.Columns, c)
	return b
}

// Build validates and returns the descriptor.
func (b *Builder) Build() (*Table, error) {
	if err := b.table.Validate(); err != nil {
		return nil, err
	}
	return b.table, nil
}

// MustBuild is Build for static descriptors; it panics on an invalid table.
func (b *Builder) MustBuild() *Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
