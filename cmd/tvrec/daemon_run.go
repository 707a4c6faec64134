package main

import (
	"github.com/spf13/cobra"

	"tvrec/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var foreground bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the tvrec daemon in the foreground (used by `tvrec start`)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{
				LogLevel:   logLevel,
				Foreground: foreground,
			}
			if ctx.socketFlag != nil {
				opts.SocketPath = *ctx.socketFlag
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Log to stdout only, without a per-run log file")
	return cmd
}
