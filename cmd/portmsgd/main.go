// Command portmsgd runs the portmsg daemon with configuration from the
// default locations, or from the file named by PORTMSG_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"portmsg/internal/config"
	"portmsg/internal/daemonrun"
)

// ConfigEnv names a config file to load instead of the default search.
const ConfigEnv = "PORTMSG_CONFIG"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(os.Getenv(ConfigEnv)))
	return cfg, err
}
