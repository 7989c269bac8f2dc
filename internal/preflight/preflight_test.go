package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portmsg/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckTransport(t *testing.T) {
	if result := CheckTransport("unix"); !result.Passed || result.Detail != "unix" {
		t.Fatalf("unix: %+v", result)
	}
	if result := CheckTransport("auto"); !result.Passed || !strings.Contains(result.Detail, "resolved from auto") {
		t.Fatalf("auto: %+v", result)
	}
	result := CheckTransport("carrier-pigeon")
	if result.Passed {
		t.Fatal("expected unknown transport to fail")
	}
	if !strings.Contains(result.Detail, "available") {
		t.Fatalf("expected available transports in detail, got %q", result.Detail)
	}
}

func TestCheckListenAddr(t *testing.T) {
	result := CheckListenAddr(context.Background(), "test", "127.0.0.1:0")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	result = CheckListenAddr(context.Background(), "test", ln.Addr().String())
	if result.Passed {
		t.Fatal("expected failure for bound address")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := []string{"State directory", "Transport", "Runtime directory"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("checks = %v, want %v", names, want)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesMetricsWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMetricsAddr("127.0.0.1:0"))
	results := RunAll(context.Background(), cfg)

	found := false
	for _, r := range results {
		if r.Name == "Metrics listener" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected metrics listener check when addr is set")
	}
	// Directories were never created.
	if len(Failed(results)) == 0 {
		t.Fatal("expected missing directories to fail")
	}
}
