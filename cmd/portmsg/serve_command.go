package main

import (
	"github.com/spf13/cobra"

	"portmsg/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var metricsAddr string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the portmsg daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.flags.logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (empty disables)")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log records")
	return cmd
}
