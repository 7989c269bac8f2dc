package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"portmsg/internal/preflight"
	"portmsg/internal/textutil"
)

type statusReport struct {
	Service   string            `json:"service"`
	Transport string            `json:"transport"`
	Running   bool              `json:"running"`
	Daemon    map[string]string `json:"daemon,omitempty"`
	Checks    []checkReport     `json:"checks,omitempty"`
}

type checkReport struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var withChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and local readiness checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, ok, err := ctx.exchange(cmd, []string{"--status"})
			if err != nil {
				return err
			}
			report := statusReport{
				Service:   ctx.config.Service.Name,
				Transport: ctx.transport,
				Running:   ok,
			}
			pairs := textutil.Pairs(reply)
			if ok {
				report.Daemon = make(map[string]string, len(pairs))
				for _, pair := range pairs {
					report.Daemon[pair.Key] = pair.Value
				}
			}
			if withChecks || !ok {
				for _, result := range preflight.RunAll(ctx.commandCtx(cmd), ctx.config) {
					report.Checks = append(report.Checks, checkReport(result))
				}
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			renderStatus(cmd.OutOrStdout(), report, pairs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	cmd.Flags().BoolVar(&withChecks, "checks", false, "Run readiness checks even when the daemon answers")
	return cmd
}

func renderStatus(out io.Writer, report statusReport, pairs []textutil.Pair) {
	tty := isTerminal(out)
	if !report.Running {
		fmt.Fprintf(out, "Daemon: not running (%s via %s)\n", report.Service, report.Transport)
	} else if tty {
		fmt.Fprintln(out, renderPairs(pairs))
	} else {
		for _, pair := range pairs {
			fmt.Fprintf(out, "%s: %s\n", pair.Key, pair.Value)
		}
	}
	if len(report.Checks) == 0 {
		return
	}

	rows := make([][]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		rows = append(rows, []string{check.Name, passFail(check.Passed), check.Detail})
	}
	if tty {
		fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows))
		return
	}
	for _, row := range rows {
		fmt.Fprintln(out, strings.Join(row, "\t"))
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func passFail(passed bool) string {
	if passed {
		return "ok"
	}
	return "fail"
}
