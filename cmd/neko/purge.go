package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uspq/neko-ai/internal/memory"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Run one memory decay pass",
	Long:  "Removes memories past their TTL that have no protecting relationship edge and sit below the usage floor.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc memory.Engine) error {
			report, err := svc.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("candidates: %d\nremoved: %d\nprotected: %d\n",
				report.Candidates, report.Removed, report.Protected)
			for _, e := range report.Errors {
				fmt.Printf("error: %s\n", e)
			}
			return nil
		})
	},
}
