package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"schemaflow/internal/dialect"
	"schemaflow/internal/twowaysql"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Check and render two-way SQL templates",
}

var sqlCheckCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Check two-way SQL files (every *.sql of the sql directory by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args
		if len(files) == 0 {
			var err error
			if files, err = sqlFiles(cfg.SQL.Directory); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range files {
			data, err := afero.ReadFile(FS, path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if err := twowaysql.Check(string(data)); err != nil {
				failed++
				for _, problem := range flatten(err) {
					fmt.Fprintf(out, "%s: %v\n", path, problem)
				}
			}
		}
		fmt.Fprintf(out, "Checked %d files, %d with problems.\n", len(files), failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d SQL files have problems", failed, len(files))
		}
		return nil
	},
}

func sqlFiles(dir string) ([]string, error) {
	var files []string
	err := afero.Walk(FS, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list SQL files in %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// flatten splits an errors.Join result into its parts.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

var (
	renderParams     []string
	renderParamsFile string
	renderDialect    string
	renderLimit      int
)

var sqlRenderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render a two-way SQL file with parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := afero.ReadFile(FS, args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		params, err := renderArgs()
		if err != nil {
			return err
		}

		var opts []twowaysql.RenderOption
		if renderDialect != "" {
			d := dialect.GetDialect(renderDialect)
			opts = append(opts, twowaysql.WithPlaceholder(func(n int) string { return d.Placeholder(n - 1) }))
		}
		bound, err := twowaysql.Render(string(data), map[string]any{"pmb": params}, opts...)
		if err != nil {
			return err
		}
		if renderLimit > 0 {
			d, err := limitDialect()
			if err != nil {
				return err
			}
			bound.SQL = d.GetLimitRowQuery(strings.TrimSpace(bound.SQL), renderLimit)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, bound.SQL)
		for i, v := range bound.Binds {
			fmt.Fprintf(out, "-- bind %d: %#v\n", i+1, v)
		}
		return nil
	},
}

// limitDialect is the --dialect one, else the dialect of the active database.
func limitDialect() (dialect.Dialect, error) {
	if renderDialect != "" {
		return dialect.GetDialect(renderDialect), nil
	}
	dbc, err := activeDB()
	if err != nil {
		return nil, fmt.Errorf("--limit needs --dialect or an active database: %w", err)
	}
	return dialect.GetDialect(dbc.Driver), nil
}

// renderArgs builds the parameter bean from the parameters file and the
// --param pairs, the pairs winning. Values are YAML scalars, so 3 is a
// number and true a boolean.
func renderArgs() (map[string]any, error) {
	params := make(map[string]any)
	if renderParamsFile != "" {
		data, err := afero.ReadFile(FS, renderParamsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", renderParamsFile, err)
		}
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", renderParamsFile, err)
		}
	}
	for _, p := range renderParams {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.New("--param must be NAME=VALUE: " + p)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("--param %s: %w", name, err)
		}
		params[strings.TrimSpace(name)] = v
	}
	return params, nil
}

func init() {
	sqlRenderCmd.Flags().StringArrayVarP(&renderParams, "param", "p", nil, "parameter bean property NAME=VALUE, repeatable")
	sqlRenderCmd.Flags().StringVar(&renderParamsFile, "params-file", "", "YAML file of parameter bean properties")
	sqlRenderCmd.Flags().StringVar(&renderDialect, "dialect", "", "placeholder style of a dialect, e.g. postgres for $1 (default ?)")
	sqlRenderCmd.Flags().IntVar(&renderLimit, "limit", 0, "wrap the rendered select in the row limit of the dialect")
	sqlCmd.AddCommand(sqlCheckCmd, sqlRenderCmd)
	RootCmd.AddCommand(sqlCmd)
}
