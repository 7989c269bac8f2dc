//go:build unix

package unixport

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultRuntimeDir returns $XDG_RUNTIME_DIR/portmsg, or a per-user directory
// under the system temp dir when XDG_RUNTIME_DIR is unset.
func DefaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "portmsg")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("portmsg-%d", unix.Getuid()))
}
