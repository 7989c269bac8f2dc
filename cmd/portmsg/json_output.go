package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints a send or status report for scripts. Replies are echoed
// byte for byte, so HTML escaping stays off and labels like "a<b" survive.
func writeJSON(cmd *cobra.Command, report any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
