package main

import (
	"strings"

	"github.com/spf13/cobra"

	"logsite/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Daemon process commands (internal)",
		Hidden: true,
	}

	var (
		logLevel   string
		diagnostic bool
		foreground bool
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the logsite daemon in this process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var socket string
			if ctx.socketFlag != nil {
				socket = strings.TrimSpace(*ctx.socketFlag)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				SocketPath: socket,
				Diagnostic: diagnostic,
				Stdout:     foreground,
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	runCmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write a JSON debug log under log_dir/debug")
	runCmd.Flags().BoolVar(&foreground, "foreground", false, "Mirror daemon logs to stdout")

	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}
