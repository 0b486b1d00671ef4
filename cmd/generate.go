package cmd

import (
	"fmt"
	"path/filepath"

	"schemaflow/internal/generate"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	generateOut     string
	generatePackage string
	generateFromDB  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate Go source for the classifications",
	Long: `generate writes a Go file with a type per classification, a constant
per element and the map of classified columns. Columns come from the saved
snapshot, or from the database with --from-db.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		resolver, err := cfg.Resolver(logger)
		if err != nil {
			return err
		}

		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		if generateFromDB {
			conn, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			if snap, err = conn.extract(ctx, resolver); err != nil {
				return err
			}
		}

		src, err := generate.Classifications(resolver.Definitions(), snap, generatePackage)
		if err != nil {
			return err
		}
		if err := FS.MkdirAll(filepath.Dir(generateOut), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := afero.WriteFile(FS, generateOut, src, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", generateOut, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %d classifications into %s.\n", len(resolver.Definitions().All()), generateOut)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "./cls/classification.go", "output file")
	generateCmd.Flags().StringVar(&generatePackage, "package", "cls", "package name of the generated file")
	generateCmd.Flags().BoolVar(&generateFromDB, "from-db", false, "read the columns from the database instead of the snapshot file")
	RootCmd.AddCommand(generateCmd)
}
