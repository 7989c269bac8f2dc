package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"portmsg/internal/daemonrun"
	"portmsg/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(ctx.config.Logging.Dir, daemonrun.LogFile)
			result, err := logs.Tail(path, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			emit := func(batch []string) error {
				for _, line := range batch {
					if _, err := fmt.Fprintln(out, line); err != nil {
						return err
					}
				}
				return nil
			}
			if err := emit(result.Lines); err != nil || !follow {
				return err
			}
			err = logs.Follow(ctx.commandCtx(cmd), path, result.Offset, 0, emit)
			if cmd.Context() != nil && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
