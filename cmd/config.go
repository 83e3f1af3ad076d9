package cmd

import (
	"database/sql"
	"fmt"
	"strings"

	"db-merge/internal/schema"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

type DBConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres pgx mysql sqlserver mssql oracle sqlite3"`
	DSN    string `mapstructure:"dsn" validate:"required"`
	Active bool   `mapstructure:"active"`
}

// ColumnConfig declares one column of a configured table.
type ColumnConfig struct {
	Name       string `mapstructure:"name" validate:"required"`
	Field      string `mapstructure:"field"`
	Type       string `mapstructure:"type" validate:"required"`
	PrimaryKey bool   `mapstructure:"primary_key"`
	Identity   bool   `mapstructure:"identity"`
	Nullable   bool   `mapstructure:"nullable"`
	Unique     bool   `mapstructure:"unique"`
	Length     int    `mapstructure:"length" validate:"gte=0"`
}

// TableConfig is a table descriptor as written in the config file.
type TableConfig struct {
	Name    string         `mapstructure:"name" validate:"required"`
	Columns []ColumnConfig `mapstructure:"columns" validate:"required,min=1,dive"`
}

// MergeConfig holds defaults for the merge command.
type MergeConfig struct {
	ChunkSize int    `mapstructure:"chunk_size" validate:"gte=0"`
	Isolation string `mapstructure:"isolation" validate:"omitempty,oneof=default read_uncommitted read_committed repeatable_read serializable"`
}

// GetActiveDBConfig returns the currently active database configuration.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig

	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var activeConfig *DBConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}
	if err := validate.Struct(activeConfig); err != nil {
		return nil, fmt.Errorf("invalid database %q: %w", activeConfig.Name, err)
	}

	return activeConfig, nil
}

// GetTableConfigs returns the configured table descriptors.
func GetTableConfigs() ([]TableConfig, error) {
	var configs []TableConfig
	if err := viper.UnmarshalKey("tables", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse tables config: %w", err)
	}
	for i := range configs {
		if err := validate.Struct(&configs[i]); err != nil {
			return nil, fmt.Errorf("invalid table #%d (%s): %w", i+1, configs[i].Name, err)
		}
	}
	return configs, nil
}

// GetMergeConfig returns the merge defaults.
func GetMergeConfig() (*MergeConfig, error) {
	config := &MergeConfig{
		ChunkSize: viper.GetInt("merge.chunk_size"),
		Isolation: viper.GetString("merge.isolation"),
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid merge config: %w", err)
	}
	return config, nil
}

// Descriptor converts the config into a validated schema.Table.
func (tc TableConfig) Descriptor() (*schema.Table, error) {
	b := schema.NewTable(tc.Name)
	for _, c := range tc.Columns {
		var opts []schema.ColumnOption
		if c.PrimaryKey {
			opts = append(opts, schema.PrimaryKey())
		}
		if c.Identity {
			opts = append(opts, schema.Identity())
		}
		if c.Nullable {
			opts = append(opts, schema.Nullable())
		}
		if c.Unique {
			opts = append(opts, schema.Unique())
		}
		if c.Field != "" {
			opts = append(opts, schema.Field(c.Field))
		}
		if c.Length > 0 {
			opts = append(opts, schema.Length(c.Length))
		}
		b.Column(c.Name, c.Type, opts...)
	}
	return b.Build()
}

// selectTables returns the descriptors of the configured tables, restricted
// to names when any are given.
func selectTables(names []string) ([]*schema.Table, error) {
	configs, err := GetTableConfigs()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(n)] = true
	}

	var tables []*schema.Table
	for _, tc := range configs {
		if len(wanted) > 0 && !wanted[strings.ToLower(tc.Name)] {
			continue
		}
		t, err := tc.Descriptor()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
		delete(wanted, strings.ToLower(tc.Name))
	}
	for n := range wanted {
		return nil, fmt.Errorf("table %s is not configured", n)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables configured")
	}
	return tables, nil
}

func parseIsolation(name string) (sql.IsolationLevel, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return sql.LevelDefault, nil
	case "read_uncommitted":
		return sql.LevelReadUncommitted, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", name)
	}
}
