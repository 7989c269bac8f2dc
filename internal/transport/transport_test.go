package transport

import (
	"os"
	"strings"
	"testing"

	"portmsg/internal/port/unixport"
)

func TestResolve(t *testing.T) {
	got, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve empty: %v", err)
	}
	want := Unix
	if Has(Mach) {
		want = Mach
	}
	if got != want {
		t.Fatalf("auto resolved to %q, want %q", got, want)
	}

	if got, err := Resolve(" UNIX "); err != nil || got != Unix {
		t.Fatalf("Resolve(UNIX) = %q, %v", got, err)
	}

	_, err = Resolve("carrier-pigeon")
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
	if !strings.Contains(err.Error(), "available: ") || !strings.Contains(err.Error(), Unix) {
		t.Fatalf("error should list available transports: %v", err)
	}
}

func TestOpenUnix(t *testing.T) {
	dir, err := os.MkdirTemp("", "pm")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	kernel, name, err := Open(Unix, Options{RuntimeDir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if name != Unix {
		t.Fatalf("expected unix, got %q", name)
	}
	if _, ok := kernel.(*unixport.Kernel); !ok {
		t.Fatalf("expected *unixport.Kernel, got %T", kernel)
	}
	if _, err := os.Stat(dir + "/services"); err != nil {
		t.Fatalf("services dir not created: %v", err)
	}
}

func TestAvailableSorted(t *testing.T) {
	names := Available()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}
