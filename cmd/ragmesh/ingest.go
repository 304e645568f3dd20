package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/retrieval"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add documents to the knowledge base",
	Long:  `Chunks and stores the given files. Only the sqlite backend keeps documents between invocations.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Config.Retrieval.Backend == "memory" {
			a.Logger.Warn("cli.ingest.transient", "reason", "memory backend discards documents on exit")
		}

		for _, path := range args {
			n, err := ingestFile(cmd.Context(), a.Mesh, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", path, n)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

// ingestFile stores the file at path under its base name.
func ingestFile(ctx context.Context, ing ragmesh.Ingester, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	n, err := ing.Ingest(ctx, retrieval.Document{
		ID:       filepath.Base(path),
		Content:  string(data),
		Metadata: map[string]any{"source": path},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to ingest %s: %w", path, err)
	}

	return n, nil
}
