package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"db-merge/internal/dialect"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dsn        string
	driver     string
	cfgFile    string
	verbose    bool
	DB         *sql.DB
	SchemaName string
	DriverName string
	Dialect    dialect.Dialect
	Logger     = slog.New(slog.DiscardHandler)
)

// skipConnect marks commands that manage their own connection.
const skipConnect = "skip-connect"

var RootCmd = &cobra.Command{
	Use:   "db-merge",
	Short: "Reconcile database tables against record batches",
	Long: `
  ____  ____    __  __ _____ ____   ____ _____
 |  _ \| __ )  |  \/  | ____|  _ \ / ___| ____|
 | | | |  _ \  | |\/| |  _| | |_) | |  _|  _|
 | |_| | |_) | | |  | | |___|  _ <| |_| | |___
 |____/|____/  |_|  |_|_____|_| \_\\____|_____|

DB MERGE - MERGE / upsert of record batches into SQL tables
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		Logger = newLogger(os.Stderr, viper.GetString("log.level"), viper.GetString("log.format"), verbose)
		if cmd.Annotations[skipConnect] == "true" {
			return nil
		}
		return connect(cmd.Context())
	},
}

// Execute runs the root command; Ctrl-C cancels the running merge.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnFinalize(closeDB)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-merge.yaml)")
	RootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database Source Name (DSN), overrides the active database")
	RootCmd.PersistentFlags().StringVar(&driver, "driver", "", "database/sql driver name (postgres, pgx, mysql, sqlserver, oracle, sqlite3)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every rendered statement")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-merge")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DB_MERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the CLI logger; verbose forces debug level.
func newLogger(w io.Writer, level, format string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// closeDB runs after every command, including ones whose RunE failed.
func closeDB() {
	if DB != nil {
		if err := DB.Close(); err != nil {
			Logger.Warn("failed to close db", "error", err)
		}
	}
}

// resolveConnection picks the DSN and driver: flags first, then the active
// database of the config file, then driver detection from the DSN.
func resolveConnection() (string, string, error) {
	connStr, drv := dsn, driver
	if connStr == "" {
		config, err := GetActiveDBConfig()
		if err != nil {
			return "", "", fmt.Errorf("no --dsn given: %w", err)
		}
		connStr = config.DSN
		if drv == "" {
			drv = config.Driver
		}
	}
	if drv == "" {
		drv = detectDriver(connStr)
	}
	return connStr, drv, nil
}

// detectDriver guesses the driver from the shape of a DSN.
func detectDriver(connStr string) string {
	lower := strings.ToLower(connStr)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"), strings.Contains(lower, "sslmode"):
		return "postgres"
	case strings.HasPrefix(lower, "sqlserver://"):
		return "sqlserver"
	case strings.HasPrefix(lower, "oracle://"):
		return "oracle"
	case strings.HasPrefix(lower, "file:"), lower == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite3"
	default:
		return "mysql"
	}
}

func connect(ctx context.Context) error {
	connStr, drv, err := resolveConnection()
	if err != nil {
		return err
	}
	d, err := dialect.GetDialect(drv)
	if err != nil {
		return err
	}

	db, err := sql.Open(drv, connStr)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	if drv == "sqlite3" {
		// one writer; also keeps ":memory:" a single database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to db: %w", err)
	}

	// Fetch current database/schema name for introspection
	if drv == "mysql" {
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&SchemaName); err != nil {
			db.Close()
			return fmt.Errorf("failed to get database name: %w", err)
		}
		if SchemaName == "" {
			db.Close()
			return fmt.Errorf("no database selected in DSN")
		}
	} else {
		SchemaName = d.GetSchemaName(viper.GetString("database.schema"))
	}

	DB, DriverName, Dialect = db, drv, d
	Logger.Debug("connected", "driver", drv, "schema", SchemaName)
	return nil
}
