package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uspq/neko-ai/internal/memory"
	"github.com/uspq/neko-ai/internal/types"
)

var (
	searchLimit        int
	searchConversation string
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search memories by keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc memory.Engine) error {
			results, err := svc.SearchMemories(ctx, args[0], searchLimit, types.ID(searchConversation))
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%s  score=%.3f  conversation=%s\n%s\n\n",
					r.MemoryID, r.Score, r.ConversationID, r.Content)
			}
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results")
	searchCmd.Flags().StringVar(&searchConversation, "conversation", "", "scope to one conversation id")
}
