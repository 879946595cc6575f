package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uspq/neko-ai/internal/memory"
	"github.com/uspq/neko-ai/internal/types"
)

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Manage conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc memory.Engine) error {
			conversations, err := svc.ListConversations(ctx, 50)
			if err != nil {
				return err
			}
			if len(conversations) == 0 {
				fmt.Println("no conversations")
				return nil
			}
			for _, conv := range conversations {
				fmt.Printf("%s  messages=%d  %s\n", conv.ID, conv.MessageCount, conv.Title)
			}
			return nil
		})
	},
}

var conversationCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc memory.Engine) error {
			conv, err := svc.CreateConversation(ctx, args[0], nil)
			if err != nil {
				return err
			}
			fmt.Println(conv.ID)
			return nil
		})
	},
}

var conversationDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and all its memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc memory.Engine) error {
			report, err := svc.DeleteConversation(ctx, types.ID(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("vectors removed: %d\nnodes removed: %d\nhistory removed: %d\nclean: %v\n",
				report.Vector.Removed, report.Graph.Removed, report.History.Removed, report.Clean())
			for _, e := range []string{report.Vector.Error, report.Graph.Error, report.History.Error, report.ConversationError} {
				if e != "" {
					fmt.Printf("error: %s\n", e)
				}
			}
			return nil
		})
	},
}

func init() {
	conversationCmd.AddCommand(conversationListCmd)
	conversationCmd.AddCommand(conversationCreateCmd)
	conversationCmd.AddCommand(conversationDeleteCmd)
}
