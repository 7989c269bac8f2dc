// Package transport selects the host kernel that backs port endpoints.
package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"portmsg/internal/port"
	"portmsg/internal/port/unixport"
)

// Transport names accepted by Open.
const (
	Auto = "auto"
	Unix = "unix"
	Mach = "mach"
)

// Options carries what an opener may need.
type Options struct {
	RuntimeDir string
}

type openFunc func(Options) (port.Kernel, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]openFunc{
		Unix: openUnix,
	}
)

// registerTransport adds an opener. Platform files call it from init.
func registerTransport(name string, open openFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[name] = open
}

// Available returns the registered transport names in sorted order.
func Available() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func Has(name string) bool {
	openersMu.RLock()
	defer openersMu.RUnlock()
	_, ok := openers[name]
	return ok
}

// Resolve maps Auto to the preferred registered transport and checks that
// any other name is registered.
func Resolve(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == Auto {
		if Has(Mach) {
			return Mach, nil
		}
		return Unix, nil
	}
	if !Has(name) {
		return "", fmt.Errorf("unknown transport %q (available: %s)", name, strings.Join(Available(), ", "))
	}
	return name, nil
}

// Open resolves name and returns a kernel for it along with the resolved
// transport name.
func Open(name string, opts Options) (port.Kernel, string, error) {
	resolved, err := Resolve(name)
	if err != nil {
		return nil, "", err
	}
	openersMu.RLock()
	open := openers[resolved]
	openersMu.RUnlock()
	kernel, err := open(opts)
	if err != nil {
		return nil, "", fmt.Errorf("open %s transport: %w", resolved, err)
	}
	return kernel, resolved, nil
}

func openUnix(opts Options) (port.Kernel, error) {
	dir := opts.RuntimeDir
	if dir == "" {
		dir = unixport.DefaultRuntimeDir()
	}
	return unixport.New(dir)
}
