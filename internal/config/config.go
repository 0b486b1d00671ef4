// Package config reads schemaflow.yaml through viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"schemaflow/internal/classification"

	"github.com/spf13/viper"
)

// FileName is the config file name searched without extension.
const FileName = "schemaflow"

// DBConfig is one configured database connection.
type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
	Active bool   `mapstructure:"active"`
}

// DiffConfig locates the snapshot and the diff history.
type DiffConfig struct {
	SnapshotFile string `mapstructure:"snapshotFile"`
	PieceDir     string `mapstructure:"pieceDir"`
	HistoryFile  string `mapstructure:"historyFile"`
	HistoryLimit int    `mapstructure:"historyLimit"`
	// Style is "piece" or "monolithic".
	Style string `mapstructure:"style"`
}

const (
	StylePiece      = "piece"
	StyleMonolithic = "monolithic"
)

type ClassificationConfig struct {
	UndefinedHandling string                      `mapstructure:"undefinedHandling"`
	Definitions       []*classification.Top       `mapstructure:"definitions"`
	Deployment        []classification.Deployment `mapstructure:"deployment"`
}

type ReplaceSchemaConfig struct {
	DataDir        string   `mapstructure:"dataDir"`
	RequiredTables []string `mapstructure:"requiredTables"`
	Rollback       bool     `mapstructure:"rollback"`
	FakeCount      int      `mapstructure:"fakeCount"`
}

type SQLConfig struct {
	Directory string `mapstructure:"directory"`
}

// Config is the whole configuration file.
type Config struct {
	Project        string               `mapstructure:"project"`
	Databases      []DBConfig           `mapstructure:"databases"`
	Diff           DiffConfig           `mapstructure:"diff"`
	Classification ClassificationConfig `mapstructure:"classification"`
	ReplaceSchema  ReplaceSchemaConfig  `mapstructure:"replaceSchema"`
	SQL            SQLConfig            `mapstructure:"sql"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project", "schemaflow")
	v.SetDefault("diff.snapshotFile", "./schema/snapshot.yaml")
	v.SetDefault("diff.pieceDir", "./schema/diffpiece")
	v.SetDefault("diff.historyLimit", 0)
	v.SetDefault("diff.style", StylePiece)
	v.SetDefault("classification.undefinedHandling", string(classification.HandlingLogging))
	v.SetDefault("replaceSchema.dataDir", "./playsql/data")
	v.SetDefault("replaceSchema.fakeCount", 100)
	v.SetDefault("sql.directory", "./sql")
}

// ReadInConfig points v at cfgFile, or searches the executable directory
// and then the working directory for schemaflow.yaml. Environment variables
// prefixed SCHEMAFLOW_ override file values. A missing file in the search
// path is not an error; the file used is returned.
func ReadInConfig(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(FileName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Diff.HistoryFile == "" {
		cfg.Diff.HistoryFile = filepath.Join(filepath.Dir(filepath.Clean(cfg.Diff.PieceDir)),
			"project-history-"+cfg.Project+".diffmap")
	}
	switch cfg.Diff.Style {
	case StylePiece, StyleMonolithic:
	default:
		return nil, fmt.Errorf("unknown diff style %q (want %s or %s)", cfg.Diff.Style, StylePiece, StyleMonolithic)
	}
	return &cfg, nil
}

// GetActiveDB returns the one database marked active.
func (c *Config) GetActiveDB() (*DBConfig, error) {
	var active *DBConfig
	count := 0
	for i := range c.Databases {
		if c.Databases[i].Active {
			active = &c.Databases[i]
			count++
		}
	}
	if count == 0 {
		return nil, fmt.Errorf("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}
	return active, nil
}

// Resolver builds the classification resolver of the configuration.
func (c *Config) Resolver(logger *slog.Logger) (*classification.Resolver, error) {
	handling, err := classification.ParseUndefinedHandling(c.Classification.UndefinedHandling)
	if err != nil {
		return nil, err
	}
	defs, err := classification.NewDefinitions(c.Classification.Definitions...)
	if err != nil {
		return nil, fmt.Errorf("invalid classification definitions: %w", err)
	}
	opts := []classification.Option{classification.WithUndefinedHandling(handling)}
	if logger != nil {
		opts = append(opts, classification.WithLogger(logger))
	}
	return classification.NewResolver(defs, c.Classification.Deployment, opts...)
}
