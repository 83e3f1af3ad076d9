package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"db-merge/internal/dialect"
	"db-merge/internal/metrics"
	"db-merge/internal/schema"

	"github.com/google/uuid"
)

// Beginner opens a transaction; *sql.DB and *sql.Conn satisfy it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sends statement text and summaries to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIsolation sets the isolation level of the merge transaction.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(m *Merger) { m.isolation = level }
}

// WithMetrics records every merge into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Merger) { m.metrics = c }
}

// Merger reconciles target tables against record batches. It holds no
// per-call state and is safe for concurrent use.
type Merger struct {
	dialect   dialect.Dialect
	logger    *slog.Logger
	isolation sql.IsolationLevel
	metrics   *metrics.Collector
}

// NewMerger returns a Merger rendering SQL with d.
func NewMerger(d dialect.Dialect, opts ...Option) *Merger {
	m := &Merger{
		dialect: d,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge reconciles table against batch with a default Merger.
func Merge(ctx context.Context, conn Beginner, d dialect.Dialect, table *schema.Table, batch []Record, match Match, actions Action) (*Result, error) {
	return NewMerger(d).Merge(ctx, conn, table, batch, match, actions)
}

// Merge partitions batch into records matched and unmatched by match and
// applies actions to table in one transaction. conn is used, never closed.
func (m *Merger) Merge(ctx context.Context, conn Beginner, table *schema.Table, batch []Record, match Match, actions Action) (*Result, error) {
	start := time.Now()
	result := &Result{Actions: actions}
	if table != nil {
		result.Table = table.Name
	}
	logger := m.logger.With("run", uuid.NewString(), "table", result.Table, "actions", actions.String())

	applied, err := m.merge(ctx, conn, table, batch, match, actions, logger)
	if err == nil {
		*result = *applied
	}
	result.Elapsed = time.Since(start)
	m.observe(result, err)

	if err != nil {
		logger.Warn("merge failed", "records", len(batch), "error", err)
		return result, err
	}
	logger.Info("merge done",
		"records", len(batch),
		"affected", result.Affected,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"merged", result.Merged,
		"elapsed", result.Elapsed)
	return result, nil
}

func (m *Merger) merge(ctx context.Context, conn Beginner, table *schema.Table, batch []Record, match Match, actions Action, logger *slog.Logger) (*Result, error) {
	q, err := m.prepare(table, batch, match, actions)
	if err != nil {
		return nil, err
	}
	result := &Result{Table: table.Name, Actions: actions}
	if len(batch) == 0 {
		logger.Debug("empty batch, nothing to merge")
		return result, nil
	}
	if err := m.apply(ctx, conn, q, actions, result, logger); err != nil {
		return nil, err
	}
	return result, nil
}

// prepare performs every check that needs no storage access and builds the query.
func (m *Merger) prepare(table *schema.Table, batch []Record, match Match, actions Action) (*dialect.MergeQuery, error) {
	if actions&(InsertWhenNotMatched|UpdateWhenMatched|DeleteWhenNotMatchedBySource) == 0 {
		return nil, configurationf("no merge action requested")
	}
	if err := table.Validate(); err != nil {
		return nil, preconditionf("%v", err)
	}
	on, err := match.resolve(table)
	if err != nil {
		return nil, err
	}

	matchTargets := make(map[string]bool, len(on))
	for _, p := range on {
		matchTargets[p.Target] = true
	}

	q := &dialect.MergeQuery{
		Table:   table.Name,
		On:      on,
		Delete:  actions.Has(DeleteWhenNotMatchedBySource),
		Columns: make([]string, len(table.Columns)),
		Types:   make([]string, len(table.Columns)),
	}
	q.Rows, err = rows(table, batch)
	if err != nil {
		return nil, err
	}
	for i, c := range table.Columns {
		q.Columns[i] = c.Name
		q.Types[i] = c.DataType

		supplied := false
		if c.IsAutoInc && actions.Has(InsertWhenNotMatched) {
			if supplied, err = suppliedKeys(q.Rows, i, c); err != nil {
				return nil, err
			}
		}
		if actions.Has(InsertWhenNotMatched) && (!c.IsAutoInc || supplied) {
			q.Insert = append(q.Insert, c.Name)
			if supplied {
				q.Identity = append(q.Identity, c.Name)
			}
		}
		if actions.Has(UpdateWhenMatched) && !c.IsPK && !c.IsAutoInc && !matchTargets[c.Name] {
			q.Update = append(q.Update, c.Name)
		}
	}
	if len(q.Insert) == 0 && len(q.Update) == 0 && !q.Delete {
		return nil, configurationf("actions %s leave nothing to write on %s", actions, table.Name)
	}

	if actions.Has(UpdateWhenMatched) {
		if err := checkDistinctKeys(q); err != nil {
			return nil, err
		}
	}
	if params := len(q.Rows) * len(q.Columns); params > m.dialect.MaxBindParams() {
		return nil, preconditionf("batch of %d records binds %d parameters, %s allows %d",
			len(q.Rows), params, m.dialect.Name(), m.dialect.MaxBindParams())
	}
	return q, nil
}

// suppliedKeys reports whether every row carries a value for the
// auto-increment column at index i. Rows must agree: either all of them
// supply the value or storage assigns it for all of them.
func suppliedKeys(rows [][]interface{}, i int, c *schema.Column) (bool, error) {
	given := 0
	for _, row := range rows {
		if row[i] != nil {
			given++
		}
	}
	if given > 0 && given < len(rows) {
		return false, preconditionf("%d of %d records set auto-increment column %s; set it in all of them or in none",
			given, len(rows), c.Name)
	}
	return given > 0, nil
}

// rows flattens batch into column order.
func rows(table *schema.Table, batch []Record) ([][]interface{}, error) {
	out := make([][]interface{}, len(batch))
	for i, rec := range batch {
		for key := range rec {
			if lookupColumn(table, key) == nil {
				return nil, preconditionf("record %d has field %q which is not a column of %s", i, key, table.Name)
			}
		}
		row := make([]interface{}, len(table.Columns))
		for j, c := range table.Columns {
			v, ok := rec.value(c)
			if !ok && !c.IsAutoInc {
				return nil, configurationf("record %d has no value for column %s", i, c.Name)
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

// checkDistinctKeys rejects batches where two records carry the same non-null
// match key, since either could update the same target row.
func checkDistinctKeys(q *dialect.MergeQuery) error {
	idx := make([]int, len(q.On))
	for i, p := range q.On {
		for j, c := range q.Columns {
			if c == p.Source {
				idx[i] = j
			}
		}
	}

	seen := make(map[string]int, len(q.Rows))
	for r, row := range q.Rows {
		parts := make([]string, len(idx))
		null := false
		for i, j := range idx {
			if row[j] == nil {
				null = true
				break
			}
			parts[i] = fmt.Sprintf("%T:%v", row[j], row[j])
		}
		if null {
			continue
		}
		key := strings.Join(parts, "\x00")
		if prev, ok := seen[key]; ok {
			return configurationf("ambiguous match: records %d and %d share match key (%s)", prev, r, strings.Join(parts, ", "))
		}
		seen[key] = r
	}
	return nil
}

// apply runs the ambiguity check and the merge plan inside a single transaction.
func (m *Merger) apply(ctx context.Context, conn Beginner, q *dialect.MergeQuery, actions Action, result *Result, logger *slog.Logger) (err error) {
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: m.isolation})
	if err != nil {
		return &StorageError{Err: err}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logger.Debug("rollback failed", "error", rbErr)
			}
		}
	}()

	if actions.Has(UpdateWhenMatched) {
		check := m.dialect.AmbiguityQuery(q)
		logger.Debug("ambiguity check", "query", check.Query, "args", len(check.Args))
		var ambiguous int
		if err = tx.QueryRowContext(ctx, check.Query, check.Args...).Scan(&ambiguous); err != nil {
			return &StorageError{Query: check.Query, Err: err}
		}
		if ambiguous > 0 {
			return configurationf("ambiguous match: %d source keys match more than one row of %s", ambiguous, q.Table)
		}
	}

	for _, stmt := range m.dialect.MergeStatements(q) {
		logger.Debug("merge statement", "action", stmt.Action, "query", stmt.Query, "args", len(stmt.Args))
		if err = execStatement(ctx, tx, stmt, result); err != nil {
			return err
		}
		result.Statements++
	}

	if err = tx.Commit(); err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

func execStatement(ctx context.Context, tx *sql.Tx, stmt dialect.Statement, result *Result) error {
	if !stmt.Returning {
		res, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return &StorageError{Query: stmt.Query, Err: err}
		}
		if stmt.Action == dialect.ActionSession {
			return nil
		}
		n, err := res.RowsAffected()
		if err != nil {
			return &StorageError{Query: stmt.Query, Err: err}
		}
		result.add(stmt.Action, int(n))
		return nil
	}

	rs, err := tx.QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return &StorageError{Query: stmt.Query, Err: err}
	}
	defer rs.Close()
	for rs.Next() {
		var action string
		if err := rs.Scan(&action); err != nil {
			return &StorageError{Query: stmt.Query, Err: err}
		}
		result.add(dialect.Action(action), 1)
	}
	if err := rs.Err(); err != nil {
		return &StorageError{Query: stmt.Query, Err: err}
	}
	return nil
}

func (m *Merger) observe(result *Result, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.ObserveMerge(result.Table, outcome(err), result.Elapsed)
	if err != nil {
		return
	}
	m.metrics.ObserveRows(result.Table, "insert", result.Inserted)
	m.metrics.ObserveRows(result.Table, "update", result.Updated)
	m.metrics.ObserveRows(result.Table, "delete", result.Deleted)
	m.metrics.ObserveRows(result.Table, "merge", result.Merged)
}
