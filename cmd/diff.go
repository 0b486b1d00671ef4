package cmd

import (
	"fmt"
	"time"

	"schemaflow/internal/config"
	"schemaflow/internal/schema"
	"schemaflow/internal/schemadiff"

	"github.com/spf13/cobra"
)

var diffDryRun bool

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the database with the last snapshot and record the difference",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		resolver, err := cfg.Resolver(logger)
		if err != nil {
			return err
		}
		conn, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		next, err := conn.extract(ctx, resolver)
		if err != nil {
			return err
		}
		previous, err := loadSnapshot()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if previous.Fingerprint() == next.Fingerprint() {
			fmt.Fprintln(out, "No schema change.")
			return nil
		}

		d := schemadiff.Compute(previous, next)
		fmt.Fprintln(out, schemadiff.Summary(d, time.Now()))
		if d.IsEmpty() || diffDryRun {
			return nil
		}

		if err := recordDiff(d); err != nil {
			return err
		}
		if err := schema.SaveSnapshot(FS, cfg.Diff.SnapshotFile, next); err != nil {
			return err
		}
		logger.Info("snapshot saved", "path", cfg.Diff.SnapshotFile, "tables", len(next.Tables))
		return nil
	},
}

func recordDiff(d *schemadiff.SchemaDiff) error {
	if cfg.Diff.Style == config.StyleMonolithic {
		hf := &schemadiff.HistoryFile{FS: FS, Path: cfg.Diff.HistoryFile, Limit: cfg.Diff.HistoryLimit}
		if err := hf.Append(d); err != nil {
			return err
		}
		logger.Info("history appended", "path", cfg.Diff.HistoryFile)
		return nil
	}
	path, err := diffMapFile().WritePiece(d)
	if err != nil {
		return err
	}
	logger.Info("diff piece written", "path", path)
	return nil
}

func diffMapFile() *schemadiff.DiffMapFile {
	return &schemadiff.DiffMapFile{
		FS:             FS,
		ProjectName:    cfg.Project,
		PieceDir:       cfg.Diff.PieceDir,
		MonolithicPath: cfg.Diff.HistoryFile,
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recorded schema differences, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			h   *schemadiff.History
			err error
		)
		if cfg.Diff.Style == config.StyleMonolithic {
			h, err = (&schemadiff.HistoryFile{FS: FS, Path: cfg.Diff.HistoryFile}).Load()
		} else {
			h, err = diffMapFile().LoadHistory()
		}
		if err != nil {
			return err
		}
		if h.Len() == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history.")
			return nil
		}
		return schemadiff.WriteReport(cmd.OutOrStdout(), h, time.Now())
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffDryRun, "dry-run", false, "Show the difference without recording it")
	RootCmd.AddCommand(diffCmd, historyCmd)
}
