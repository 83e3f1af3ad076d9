package cmd

import (
	"context"
	"fmt"

	"db-merge/internal/dialect"
	"db-merge/internal/schema"

	"github.com/spf13/cobra"
)

var cleanTables []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean all data from the configured tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := selectTables(cleanTables)
		if err != nil {
			return err
		}
		return cleanDatabase(cmd.Context(), tables, Dialect)
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}

// cleanDatabase truncates tables in reverse order, each in its own
// transaction, so a failed table does not abort the ones after it.
func cleanDatabase(ctx context.Context, tables []*schema.Table, d dialect.Dialect) error {
	count, failed := 0, 0
	total := len(tables)
	for i := len(tables) - 1; i >= 0; i-- {
		count++
		if err := cleanTable(ctx, tables[i], d); err != nil {
			failed++
			Logger.Warn("clean failed, continuing", "table", tables[i].Name, "error", err)
			continue
		}
		if count%5 == 0 || count == total {
			Logger.Info(fmt.Sprintf("Cleaned %d/%d tables...", count, total))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tables could not be cleaned", failed, total)
	}

	fmt.Println("🧹 Tables cleaned")
	return nil
}

func cleanTable(ctx context.Context, t *schema.Table, d dialect.Dialect) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := schema.Truncate(ctx, tx, d, t); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleaning of %s: %w", t.Name, err)
	}
	return nil
}
