package cmd

import (
	"context"
	"fmt"

	"schemaflow/internal/classification"
	"schemaflow/internal/replaceschema"

	"github.com/spf13/cobra"
)

var cleanTables []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the data of all tables, children first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loader, closeDB, err := newLoader(ctx, nil)
		if err != nil {
			return err
		}
		defer closeDB()

		tables, err := loader.Targets(cleanTables)
		if err != nil {
			return err
		}
		if err := loader.Clean(ctx, tables); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %d tables.\n", len(tables))
		return nil
	},
}

// newLoader connects, extracts the schema and returns a loader over it with
// the function closing the connection.
func newLoader(ctx context.Context, resolver *classification.Resolver) (*replaceschema.Loader, func(), error) {
	conn, err := openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("analyzing schema...")
	snap, err := conn.extract(ctx, resolver)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	loader := &replaceschema.Loader{
		DB:       conn.DB,
		Dialect:  conn.Dialect,
		Snapshot: snap,
		Resolver: resolver,
		Logger:   logger,
	}
	return loader, func() { conn.Close() }, nil
}

func init() {
	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", nil, "Specific tables to clean (comma-separated)")
	RootCmd.AddCommand(cleanCmd)
}
