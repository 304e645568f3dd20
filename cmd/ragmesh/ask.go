package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
)

type askOutput struct {
	RunID string `json:"run_id"`
	*ragmesh.Answer
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Long:  `Runs one question through the agent graph and prints the final answer. Documents passed with --doc are ingested first.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, _ := cmd.Flags().GetStringSlice("doc")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		for _, path := range docs {
			if _, err := ingestFile(ctx, a.Mesh, path); err != nil {
				return err
			}
		}

		runID, answer, err := a.Runner.Run(ctx, "", strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(askOutput{RunID: runID, Answer: answer})
		}

		fmt.Fprintln(out, answer.Answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringSlice("doc", nil, "Ingest these files before asking")
	askCmd.Flags().Bool("json", false, "Print the answer, step count and path as JSON")
}
