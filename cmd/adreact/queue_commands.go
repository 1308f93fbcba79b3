package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := ctx.client().QueueList(cmd.Context(), listStatuses)
			if err != nil {
				return fmt.Errorf("list queue: %w", err)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					jobTypeLabel(item.Type),
					statusLabel(item.Status),
					strconv.Itoa(item.RetryCount),
					orDash(item.ErrorMessage),
					orDash(item.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{
					{name: "ID", numeric: true},
					{name: "Type"},
					{name: "Status"},
					{name: "Retries", numeric: true},
					{name: "Error"},
					{name: "Updated"},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, processing, completed, failed)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a single queue job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			item, err := ctx.client().QueueJob(cmd.Context(), jobID)
			if err != nil {
				return err
			}

			rows := [][2]string{
				{"ID", strconv.FormatInt(item.ID, 10)},
				{"Type", jobTypeLabel(item.Type)},
				{"Status", statusLabel(item.Status)},
				{"Retries", strconv.Itoa(item.RetryCount)},
				{"Error kind", orDash(item.ErrorKind)},
				{"Error", orDash(item.ErrorMessage)},
				{"Created", orDash(item.CreatedAt)},
				{"Started", orDash(item.StartedAt)},
				{"Finished", orDash(item.FinishedAt)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues("Field", "Value", rows))
			return nil
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Retry a failed queue job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			item, err := ctx.client().RetryQueueJob(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d reset to %s (retry %d)\n", item.ID, item.Status, item.RetryCount)
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := ctx.client().ClearCompleted(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear queue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed job(s)\n", removed)
			return nil
		},
	}
}
