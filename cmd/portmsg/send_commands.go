package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"portmsg/internal/textutil"
)

type sendResult struct {
	OK    bool     `json:"ok"`
	Reply string   `json:"reply"`
	Lines []string `json:"lines,omitempty"`
}

func newSendCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var asTable bool

	cmd := &cobra.Command{
		Use:   "send [flags] -- <command...>",
		Short: "Send a command and print the reply",
		Long: "Send a command to the service and print the decoded reply, one token per line.\n" +
			"A single argument is split like a command line; several arguments are sent as-is.\n" +
			"No reply prints nothing and still exits 0.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asTable {
				return errors.New("--json and --table are mutually exclusive")
			}
			reply, ok, err := ctx.exchange(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				result := sendResult{OK: ok, Reply: reply}
				if ok && reply != "" {
					result.Lines = strings.Split(reply, "\n")
				}
				return writeJSON(cmd, result)
			case !ok:
				return nil
			case asTable:
				fmt.Fprintln(out, renderPairs(textutil.Pairs(reply)))
			default:
				fmt.Fprintln(out, reply)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the reply as JSON")
	cmd.Flags().BoolVar(&asTable, "table", false, "Render the reply as a key/value table")
	return cmd
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key> -- <command...>",
		Short: "Send a command and print one value from a key/value reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, ok, err := ctx.exchange(cmd, args[1:])
			if err != nil || !ok {
				return err
			}
			if value, found := textutil.ValueForKey(reply, args[0]); found {
				fmt.Fprintln(cmd.OutOrStdout(), value)
			}
			return nil
		},
	}
}

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the service answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, ok, err := ctx.exchange(cmd, []string{"--ping"})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no reply from %s; start it with `portmsg serve`", ctx.config.Service.Name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}
