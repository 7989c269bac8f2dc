package testsupport

import (
	"os"
	"strings"
	"testing"
)

// ShortTempDir creates a temp directory with a short path. Unix socket paths
// are limited to roughly a hundred bytes, which t.TempDir often exceeds.
func ShortTempDir(t testing.TB) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "pm")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

// SkipIfSocketsDenied skips the test when the sandbox forbids unix sockets.
func SkipIfSocketsDenied(t testing.TB, err error) {
	t.Helper()

	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("unix sockets unavailable: %v", err)
	}
}
