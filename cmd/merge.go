package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"db-merge/internal/engine"
	"db-merge/internal/metrics"
	"db-merge/internal/schema"

	"github.com/gosuri/uiprogress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	mergeTable   string
	batchFile    string
	fakeCount    int
	fakeSeed     int64
	matchOn      []string
	byKey        bool
	doInsert     bool
	doUpdate     bool
	doDelete     bool
	actionNames  []string
	introspect   bool
	metricsFile  string
	previewLimit int
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a record batch into a table",
	Example: `  db-merge merge --table mytable --file batch.yaml --on value_a,value_b
  db-merge merge --table mytable --fake 1000 --by-key --insert --update --chunk-size 250
  db-merge merge --table mytable --file batch.yaml --by-key --actions insert,update,delete`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, err := GetMergeConfig()
		if err != nil {
			return err
		}
		isolation, err := parseIsolation(config.Isolation)
		if err != nil {
			return err
		}

		table, err := loadDescriptor(ctx)
		if err != nil {
			return err
		}
		batch, err := loadBatch(table)
		if err != nil {
			return err
		}
		match, err := parseMatch(matchOn, byKey)
		if err != nil {
			return err
		}
		actions, err := requestedActions(actionNames, doInsert, doUpdate, doDelete)
		if err != nil {
			return err
		}

		chunks, err := chunkBatch(batch, config.ChunkSize, actions)
		if err != nil {
			return err
		}

		collector := metrics.NewCollector()
		registry := prometheus.NewRegistry()
		if err := collector.Register(registry); err != nil {
			return err
		}
		merger := engine.NewMerger(Dialect,
			engine.WithLogger(Logger),
			engine.WithIsolation(isolation),
			engine.WithMetrics(collector))

		fmt.Printf("🔀 Merging %d records into %s via %s [%s]\n", len(batch), table.Name, DriverName, actions)
		before, err := countRows(ctx, table.Name)
		if err != nil {
			return err
		}

		start := time.Now()
		total := &engine.Result{Table: table.Name, Actions: actions}

		progress := uiprogress.New()
		progress.Start()
		bar := progress.AddBar(len(chunks)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Merging: "
		})
		for _, chunk := range chunks {
			result, err := merger.Merge(ctx, DB, table, chunk, match, actions)
			if err != nil {
				progress.Stop()
				return fmt.Errorf("merge into %s failed after %d affected rows: %w", table.Name, total.Affected, err)
			}
			total.Accumulate(result)
			bar.Incr()
		}
		progress.Stop()

		after, err := countRows(ctx, table.Name)
		if err != nil {
			return err
		}

		fmt.Println("\n📊 Summary Report:")
		fmt.Printf("  %s\n", total.Report())
		fmt.Printf("  rows before: %d, after: %d, chunks: %d\n", before, after, len(chunks))
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Affected: %d\n", total.Affected)
		Logger.Info("merge command done", "table", table.Name, "affected", total.Affected, "elapsed", time.Since(start))

		if previewLimit > 0 {
			if err := preview(ctx, table, previewLimit); err != nil {
				return err
			}
		}
		if metricsFile != "" {
			if err := metrics.WriteTextfile(metricsFile, registry); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&mergeTable, "table", "t", "", "target table")
	mergeCmd.Flags().StringVarP(&batchFile, "file", "f", "", "batch file: a YAML or JSON list of records")
	mergeCmd.Flags().IntVar(&fakeCount, "fake", 0, "generate this many fake records instead of reading a file")
	mergeCmd.Flags().Int64Var(&fakeSeed, "seed", 0, "seed for --fake (0 is random)")
	mergeCmd.Flags().StringSliceVar(&matchOn, "on", nil, "match pairs: column or source=target (comma-separated)")
	mergeCmd.Flags().BoolVar(&byKey, "by-key", false, "match on the primary key")
	mergeCmd.Flags().BoolVar(&doInsert, "insert", false, "insert records with no matching row (default when no action is given)")
	mergeCmd.Flags().BoolVar(&doUpdate, "update", false, "update matched rows")
	mergeCmd.Flags().BoolVar(&doDelete, "delete", false, "delete rows matched by no record")
	mergeCmd.Flags().StringSliceVar(&actionNames, "actions", nil, "actions as a list: insert, update, delete (combined with the flags above)")
	mergeCmd.Flags().Int("chunk-size", 0, "records per transaction (0 merges the whole batch at once)")
	mergeCmd.Flags().String("isolation", "", "transaction isolation (read_committed, repeatable_read, serializable)")
	mergeCmd.Flags().BoolVar(&introspect, "introspect", false, "read the table descriptor from the database catalog")
	mergeCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	mergeCmd.Flags().IntVar(&previewLimit, "preview", 0, "print this many rows of the table after merging")
	mergeCmd.MarkFlagRequired("table")
	mergeCmd.MarkFlagsMutuallyExclusive("file", "fake")
	mergeCmd.MarkFlagsMutuallyExclusive("on", "by-key")

	viper.BindPFlag("merge.chunk_size", mergeCmd.Flags().Lookup("chunk-size"))
	viper.BindPFlag("merge.isolation", mergeCmd.Flags().Lookup("isolation"))
}

func loadDescriptor(ctx context.Context) (*schema.Table, error) {
	if introspect {
		return schema.LoadTable(ctx, DB, Dialect, SchemaName, mergeTable)
	}
	tables, err := selectTables([]string{mergeTable})
	if err != nil {
		return nil, fmt.Errorf("%w (use --introspect to read it from the database)", err)
	}
	return tables[0], nil
}

func loadBatch(table *schema.Table) ([]engine.Record, error) {
	switch {
	case fakeCount > 0:
		return engine.NewGenerator(fakeSeed).FakeBatch(table, fakeCount), nil
	case batchFile != "":
		data, err := os.ReadFile(batchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch: %w", err)
		}
		return decodeBatch(data)
	default:
		return nil, fmt.Errorf("either --file or --fake is required")
	}
}

// decodeBatch reads a YAML (or JSON) sequence of mappings.
func decodeBatch(data []byte) ([]engine.Record, error) {
	var raw []map[string]interface{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	batch := make([]engine.Record, len(raw))
	for i, m := range raw {
		batch[i] = engine.Record(m)
	}
	return batch, nil
}

// parseMatch turns --on entries ("col" or "source=target") into a Match.
// Without either flag records are matched on the primary key.
func parseMatch(on []string, key bool) (engine.Match, error) {
	if key || len(on) == 0 {
		return engine.ByPrimaryKey(), nil
	}
	pairs := make([]engine.Pair, 0, len(on))
	for _, entry := range on {
		source, target, found := strings.Cut(strings.TrimSpace(entry), "=")
		if !found {
			target = source
		}
		source, target = strings.TrimSpace(source), strings.TrimSpace(target)
		if source == "" || target == "" {
			return engine.Match{}, fmt.Errorf("invalid match pair %q", entry)
		}
		pairs = append(pairs, engine.Pair{Source: source, Target: target})
	}
	return engine.On(pairs...), nil
}

// requestedActions combines --actions with the boolean flags; with neither
// the merge only inserts.
func requestedActions(names []string, insert, update, del bool) (engine.Action, error) {
	a, err := engine.ParseActions(names)
	if err != nil {
		return 0, err
	}
	if insert {
		a |= engine.InsertWhenNotMatched
	}
	if update {
		a |= engine.UpdateWhenMatched
	}
	if del {
		a |= engine.DeleteWhenNotMatchedBySource
	}
	if a == 0 {
		a = engine.InsertWhenNotMatched
	}
	return a, nil
}

// chunkBatch splits batch into transactions of size records. A delete must
// see the whole batch, so it cannot be chunked.
func chunkBatch(batch []engine.Record, size int, actions engine.Action) ([][]engine.Record, error) {
	if size <= 0 || size >= len(batch) {
		return [][]engine.Record{batch}, nil
	}
	if actions.Has(engine.DeleteWhenNotMatchedBySource) {
		return nil, fmt.Errorf("--delete needs the whole batch in one merge; drop --chunk-size or raise it to %d", len(batch))
	}
	var chunks [][]engine.Record
	for start := 0; start < len(batch); start += size {
		end := start + size
		if end > len(batch) {
			end = len(batch)
		}
		chunks = append(chunks, batch[start:end])
	}
	return chunks, nil
}

func countRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func preview(ctx context.Context, table *schema.Table, limit int) error {
	query := Dialect.GetLimitRowQuery(fmt.Sprintf("SELECT %s FROM %s", strings.Join(table.ColumnNames(), ", "), table.Name), limit)
	rows, err := DB.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to preview %s: %w", table.Name, err)
	}
	defer rows.Close()

	fmt.Printf("\n🔍 %s (first %d rows):\n", table.Name, limit)
	fmt.Printf("  %s\n", strings.Join(table.ColumnNames(), " | "))
	values := make([]interface{}, len(table.Columns))
	ptrs := make([]interface{}, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(val)
			default:
				cells[i] = fmt.Sprint(val)
			}
		}
		fmt.Printf("  %s\n", strings.Join(cells, " | "))
	}
	return rows.Err()
}
