package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "upload <recording>",
		Short: "Upload a recording for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer file.Close()

			resp, err := ctx.client().UploadReaction(cmd.Context(), file)
			if err != nil {
				return fmt.Errorf("upload recording: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reaction %s accepted (status %s)\n", resp.Reaction.ReactionID, resp.Reaction.Status)
			if resp.Fallback {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue worker unavailable; processing inline without a queue job")
			} else if resp.Reaction.QueueJobID != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Queue job %d\n", *resp.Reaction.QueueJobID)
			}

			if !watch {
				return nil
			}
			return watchReaction(cmd, ctx, resp.Reaction.ReactionID)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Poll status until the reaction reaches a terminal state")
	return cmd
}
