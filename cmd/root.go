package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"schemaflow/internal/classification"
	"schemaflow/internal/config"
	"schemaflow/internal/dialect"
	"schemaflow/internal/logging"
	"schemaflow/internal/schema"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	dsn        string
	driverName string
	schemaName string

	cfg    *config.Config
	logger *slog.Logger
	// FS is the file system every command reads and writes through.
	FS afero.Fs = afero.NewOsFs()
)

var RootCmd = &cobra.Command{
	Use:   "schemaflow",
	Short: "Schema snapshots, diff history, two-way SQL and ReplaceSchema",
	Long: `schemaflow reads database metadata into snapshots, keeps a history of
schema differences, checks and renders two-way SQL templates and rebuilds
test data (ReplaceSchema).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.InitLogger(cmd.ErrOrStderr(), viper.GetString("log.level"), viper.GetString("log.format"))
		if err != nil {
			return err
		}
		used, err := config.ReadInConfig(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		if used != "" {
			logger.Debug("using config file", "path", used)
		}
		cfg, err = config.Load(viper.GetViper())
		return err
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./schemaflow.yaml)")
	flags.StringVar(&dsn, "dsn", "", "Database Source Name (DSN), overrides the active database of the config")
	flags.StringVar(&driverName, "driver", "", "driver of --dsn: mysql, postgres, pgx, sqlserver, oracle or sqlite (detected when empty)")
	flags.StringVar(&schemaName, "schema", "", "schema to read (dialect default when empty)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
	config.SetDefaults(viper.GetViper())
}

// activeDB picks the connection: the --dsn flag first, then the active
// database of the config.
func activeDB() (*config.DBConfig, error) {
	var dbc config.DBConfig
	if dsn != "" {
		dbc = config.DBConfig{Name: "command line", Driver: driverName, DSN: dsn, Active: true}
		if dbc.Driver == "" {
			dbc.Driver = detectDriver(dsn)
		}
	} else {
		active, err := cfg.GetActiveDB()
		if err != nil {
			return nil, err
		}
		dbc = *active
	}
	if schemaName != "" {
		dbc.Schema = schemaName
	}
	return &dbc, nil
}

func detectDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres") || strings.Contains(lower, "sslmode"):
		return "postgres"
	case strings.HasPrefix(lower, "sqlserver://"):
		return "sqlserver"
	case strings.HasPrefix(lower, "oracle://"):
		return "oracle"
	case lower == ":memory:" || strings.HasPrefix(lower, "file:") ||
		strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite"):
		return "sqlite"
	}
	return "mysql"
}

// sqlDriver maps a configured driver to the database/sql driver name.
func sqlDriver(driver string) string {
	switch driver {
	case "sqlite3":
		return "sqlite"
	case "mssql":
		return "sqlserver"
	}
	return driver
}

type connection struct {
	DB      *sql.DB
	Dialect dialect.Dialect
	Schema  string
	Name    string
}

func openDB(ctx context.Context) (*connection, error) {
	dbc, err := activeDB()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(sqlDriver(dbc.Driver), dbc.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if sqlDriver(dbc.Driver) == "sqlite" {
		// an in-memory database lives as long as its one connection
		db.SetMaxOpenConns(1)
	}

	conn := &connection{DB: db, Dialect: dialect.GetDialect(dbc.Driver), Schema: dbc.Schema, Name: dbc.Name}
	if conn.Schema == "" && conn.Dialect.Name() == "mysql" {
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&conn.Schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to get database name: %w", err)
		}
		if conn.Schema == "" {
			db.Close()
			return nil, fmt.Errorf("no database selected in DSN")
		}
	}
	logger.Info("connected", "database", conn.Name, "dialect", conn.Dialect.Name(), "schema", conn.Dialect.GetSchemaName(conn.Schema))
	return conn, nil
}

func (c *connection) Close() error { return c.DB.Close() }

func (c *connection) extract(ctx context.Context, resolver *classification.Resolver) (*schema.Snapshot, error) {
	e := &schema.Extractor{DB: c.DB, Dialect: c.Dialect, SchemaName: c.Schema, Logger: logger}
	if resolver != nil {
		e.Classifier = resolver
	}
	return e.Extract(ctx)
}

// loadSnapshot reads the snapshot file of the config. A missing file is an
// empty snapshot.
func loadSnapshot() (*schema.Snapshot, error) {
	snap, err := schema.LoadSnapshot(FS, cfg.Diff.SnapshotFile)
	if errors.Is(err, fs.ErrNotExist) {
		return schema.Empty(), nil
	}
	return snap, err
}
