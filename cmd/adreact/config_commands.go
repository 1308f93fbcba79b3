package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"adreact/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap configuration",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := [][2]string{
				{"Data directory", cfg.Paths.DataDir},
				{"Log directory", cfg.Paths.LogDir},
				{"Advertisement", orDash(cfg.Paths.AdPath)},
				{"API bind", cfg.Paths.APIBind},
				{"Queue database", cfg.QueueDBPath()},
				{"Recordings", cfg.RecordingsDir()},
				{"Poll interval", strconv.Itoa(cfg.Queue.PollInterval) + "s"},
				{"Fallback limit", strconv.Itoa(cfg.Queue.FallbackLimit)},
				{"Readiness timeout", strconv.Itoa(cfg.Recorder.ReadinessTimeoutSeconds) + "s"},
				{"Fullscreen fallback", strconv.Itoa(cfg.Recorder.FullscreenFallbackMillis) + "ms"},
				{"Status poll interval", strconv.Itoa(cfg.Recorder.StatusPollIntervalSeconds) + "s"},
				{"Log level", cfg.Logging.Level},
				{"Log format", cfg.Logging.Format},
				{"Ntfy topic", orDash(cfg.Notifications.NtfyTopic)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues("Setting", "Value", rows))
			return nil
		},
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = *ctx.configFlag
			}
			written, err := config.WriteSample(path, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", written)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}
