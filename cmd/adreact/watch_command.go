package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"adreact/internal/client"
	"adreact/internal/logging"
	"adreact/internal/polling"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <reaction-id>",
		Short: "Poll a reaction until it reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchReaction(cmd, ctx, args[0])
		},
	}
}

func watchReaction(cmd *cobra.Command, ctx *commandContext, reactionID string) error {
	apiClient := ctx.client()

	view, err := apiClient.Reaction(cmd.Context(), reactionID)
	if err != nil {
		return fmt.Errorf("fetch reaction: %w", err)
	}

	interval := 4 * time.Second
	if cfg, cfgErr := ctx.ensureConfig(); cfgErr == nil && cfg != nil && cfg.Recorder.StatusPollIntervalSeconds > 0 {
		interval = time.Duration(cfg.Recorder.StatusPollIntervalSeconds) * time.Second
	}

	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tty := stdoutIsTerminal()
	var lastLine string
	var terminal *polling.Snapshot

	callbacks := polling.Callbacks{
		OnUpdate: func(snapshot polling.Snapshot) {
			line := statusLabel(snapshot.Status)
			if snapshot.Detail != "" {
				line += " (" + snapshot.Detail + ")"
			}
			if line == lastLine {
				return
			}
			lastLine = line
			if tty {
				fmt.Fprintf(out, "\r\033[K%s", line)
			} else {
				fmt.Fprintln(out, line)
			}
		},
		OnTerminal: func(snapshot polling.Snapshot) {
			terminal = &snapshot
		},
	}

	fetch := client.ReactionStatusFetch(apiClient, reactionID, view.QueueJobID)
	poller := polling.NewPoller(fetch, interval, callbacks, logger)
	poller.Start(cmd.Context())
	<-poller.Done()

	if tty {
		fmt.Fprintln(out)
	}
	if terminal == nil {
		return errors.New("polling stopped before the reaction finished")
	}
	if terminal.Status == "failed" {
		if terminal.Detail != "" {
			return errors.New(terminal.Detail)
		}
		return errors.New("reaction processing failed")
	}
	fmt.Fprintf(out, "Reaction %s completed\n", reactionID)
	return nil
}
