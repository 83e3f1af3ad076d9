package cmd

import (
	"fmt"

	"db-merge/internal/schema"

	"github.com/spf13/cobra"
)

var createTables []string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the configured tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := selectTables(createTables)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if err := schema.CreateTable(cmd.Context(), DB, Dialect, t); err != nil {
				return err
			}
			Logger.Info("table ready", "table", t.Name, "columns", len(t.Columns))
		}
		fmt.Printf("🦅 %d table(s) ready on %s\n", len(tables), DriverName)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(createCmd)
	createCmd.Flags().StringSliceVarP(&createTables, "tables", "t", []string{}, "Specific tables to create (comma-separated)")
}
