package cmd

import (
	"fmt"

	"schemaflow/internal/replaceschema"

	"github.com/spf13/cobra"
)

var (
	replaceRollback   bool
	replaceNoProgress bool
)

var replaceSchemaCmd = &cobra.Command{
	Use:   "replace-schema",
	Short: "Clean every table, load the data files and check the result",
	Long: `replace-schema cleans every table, loads the *.yaml data files of
replaceSchema.dataDir in foreign key order and asserts that the tables of
replaceSchema.requiredTables have data.

With --rollback the data is loaded in one transaction that is rolled back at
the end: the data files are verified without touching the database, so
nothing is cleaned and nothing is asserted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		resolver, err := cfg.Resolver(logger)
		if err != nil {
			return err
		}
		loader, closeDB, err := newLoader(ctx, resolver)
		if err != nil {
			return err
		}
		defer closeDB()

		rollback := replaceRollback || cfg.ReplaceSchema.Rollback
		ds := &replaceschema.YAMLDataSet{FS: FS, Dir: cfg.ReplaceSchema.DataDir}
		names, err := ds.Tables()
		if err != nil {
			return err
		}
		for _, name := range names {
			if _, ok := loader.Snapshot.Table(name); !ok {
				logger.Warn("data for unknown table is ignored", "table", name)
			}
		}

		targets, err := loader.Targets(nil)
		if err != nil {
			return err
		}
		if !rollback {
			if err := loader.Clean(ctx, targets); err != nil {
				return err
			}
		}

		total := 0
		for _, t := range targets {
			rows, err := ds.Rows(t, nil)
			if err != nil {
				return err
			}
			total += len(rows)
		}

		opts := replaceschema.LoadOptions{Rollback: rollback}
		stop := startProgress(&opts, total, replaceNoProgress)
		results, err := loader.Load(ctx, ds, opts)
		stop()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printResults(out, results)
		if rollback {
			fmt.Fprintln(out, "Rolled back.")
			return nil
		}

		counts, err := loader.TakeFinally(ctx, replaceschema.TakeFinallyPolicy{RequiredTables: cfg.ReplaceSchema.RequiredTables})
		if err != nil {
			return err
		}
		for _, c := range counts {
			logger.Debug("take-finally", "table", c.Table, "rows", c.Rows)
		}
		return nil
	},
}

func init() {
	replaceSchemaCmd.Flags().BoolVar(&replaceRollback, "rollback", false, "Verify the data files and roll back")
	replaceSchemaCmd.Flags().BoolVar(&replaceNoProgress, "no-progress", false, "Hide the progress bar")
	RootCmd.AddCommand(replaceSchemaCmd)
}
