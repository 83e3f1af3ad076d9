package dialect

// Dialect abstracts database-specific SQL rendering.
type Dialect interface {
	Name() string

	// Metadata Queries (Schema Introspection)
	GetColumnsQuery(schema string) string

	// Merge Rendering
	// MergeStatements returns the statements reconciling q.Table against q.Rows.
	// The caller runs all of them inside a single transaction, in order.
	MergeStatements(q *MergeQuery) []Statement
	// AmbiguityQuery counts source keys that match more than one target row.
	AmbiguityQuery(q *MergeQuery) Statement

	// DDL
	CreateTableQuery(table string, cols []Column, pk []string) string
	TruncateQuery(table string) string

	// Binding
	Placeholder(index int) string // Returns ?, $1, @p1, etc.
	MaxBindParams() int

	// Helpers
	NormalizeType(sqlType string) string
	GetSchemaName(input string) string
	GetLimitRowQuery(query string, limit int) string
}

// Pair is one equality term of a match predicate.
type Pair struct {
	Source string
	Target string
}

// Column is the DDL view of a table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Identity bool
}

// MergeQuery carries everything a dialect needs to render a merge.
type MergeQuery struct {
	Table   string
	Columns []string // source projection, in row order
	Types   []string // SQL type per source column; "" binds without a cast
	On      []Pair
	Insert  []string // columns written for unmatched source rows; empty means no insert
	Update  []string // columns set on matched target rows; empty means no update
	Delete  bool     // delete target rows not matched by any source row
	Rows    [][]interface{}

	// Identity lists auto-increment columns in Insert whose values the
	// batch supplies instead of storage.
	Identity []string
}

// Action names what a statement did to the rows it reports.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	// ActionMerge is reported when the backend does not attribute rows to an action.
	ActionMerge Action = "MERGE"
	// ActionSession marks statements that only set session state; their row
	// counts are not reported.
	ActionSession Action = ""
)

// Statement is one rendered statement with its bind arguments.
type Statement struct {
	Query  string
	Args   []interface{}
	Action Action
	// Returning statements yield one row per affected target row; the first
	// column holds the action applied to that row.
	Returning bool
}
