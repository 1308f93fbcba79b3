package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch status: %w", err)
			}

			rows := [][2]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"Worker running", yesNo(status.Worker.Running)},
				{"Fallback in flight", strconv.Itoa(status.Worker.FallbackInFlight)},
				{"Queue database", orDash(status.QueueDBPath)},
				{"Lock file", orDash(status.LockFilePath)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues("Field", "Value", rows))

			queueRows := [][]string{
				{"Pending", strconv.Itoa(status.Queue.Pending)},
				{"Processing", strconv.Itoa(status.Queue.Processing)},
				{"Completed", strconv.Itoa(status.Queue.Completed)},
				{"Failed", strconv.Itoa(status.Queue.Failed)},
				{"Total", strconv.Itoa(status.Queue.Total)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{{name: "Queue"}, {name: "Count", numeric: true}},
				queueRows,
			))
			return nil
		},
	}
}

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Validate the local environment for the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runPreflight(cmd, cfg)
		},
	}
}
