package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uspq/neko-ai/internal/memory"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cross-store memory statistics",
	Long:  "Prints conversation, vector, graph, and history counts, plus whether the vector index and graph agree.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc memory.Engine) error {
			stats, err := svc.Statistics(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}
