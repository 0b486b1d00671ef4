package cmd

import (
	"fmt"
	"io"
	"time"

	"schemaflow/internal/replaceschema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
)

var (
	fillCount      int
	fillClean      bool
	fillDryRun     bool
	fillTables     []string
	fillSeed       int64
	fillNoProgress bool
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill the database with generated data",
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

		count := cfg.ReplaceSchema.FakeCount
		if fillCount > 0 {
			count = fillCount
		}
		targets, err := loader.Targets(fillTables)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if fillDryRun {
			fmt.Fprintln(out, "Load order:")
			for i, t := range targets {
				fmt.Fprintf(out, "[%02d] %s (references: %v)\n", i+1, t.DBName, t.ReferencedTables())
			}
			return nil
		}
		if fillClean {
			if err := loader.Clean(ctx, targets); err != nil {
				return err
			}
		}

		ds := &replaceschema.FakeDataSet{Count: count, Resolver: resolver, Logger: logger}
		if fillSeed != 0 {
			ds.Faker = gofakeit.New(fillSeed)
		}

		logger.Info("starting fill", "count", count, "tables", len(targets))
		start := time.Now()
		opts := replaceschema.LoadOptions{Tables: fillTables, ContinueOnError: true}
		stop := startProgress(&opts, count*len(targets), fillNoProgress)
		results, err := loader.Load(ctx, ds, opts)
		stop()
		if err != nil {
			return err
		}
		printResults(out, results)
		logger.Info("fill done", "elapsed", time.Since(start))
		return nil
	},
}

// startProgress hooks a progress bar of total steps into opts and returns
// the function stopping it.
func startProgress(opts *replaceschema.LoadOptions, total int, disabled bool) func() {
	if disabled || total <= 0 {
		return func() {}
	}
	progress := uiprogress.New()
	progress.Start()
	bar := progress.AddBar(total).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return "Loading: "
	})
	opts.OnRow = func(string) { bar.Incr() }
	return progress.Stop
}

func printResults(w io.Writer, results []replaceschema.LoadResult) {
	fmt.Fprintln(w, "\nSummary (load order):")
	total := 0
	for i, r := range results {
		icon := "✓"
		if r.Status != replaceschema.StatusOK {
			icon = "!"
		}
		fmt.Fprintf(w, "[%s] [%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
			icon, i+1, len(results), r.Table, r.Loaded, r.Expected, r.Status)
		total += r.Loaded
	}
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Total rows: %d\n", total)
}

func init() {
	RootCmd.AddCommand(fillCmd)

	fillCmd.Flags().IntVar(&fillCount, "count", 0, "Number of rows to generate per table (overrides replaceSchema.fakeCount)")
	fillCmd.Flags().BoolVar(&fillClean, "clean", false, "Clean tables before filling")
	fillCmd.Flags().BoolVar(&fillDryRun, "dry-run", false, "Show the load order without writing to the database")
	fillCmd.Flags().StringSliceVarP(&fillTables, "tables", "t", nil, "Specific tables to fill (comma-separated)")
	fillCmd.Flags().Int64Var(&fillSeed, "seed", 0, "Seed of the data generator (random when 0)")
	fillCmd.Flags().BoolVar(&fillNoProgress, "no-progress", false, "Hide the progress bar")
}
