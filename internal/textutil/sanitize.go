package textutil

import (
	"fmt"
	"strings"
)

// EscapeFileName maps a service name onto a single filesystem-safe path
// segment. Letters, digits, '.', '-' and '_' pass through; every other byte
// becomes %XX, so distinct names never collide. Names made only of dots are
// escaped too so they cannot address a parent directory.
func EscapeFileName(name string) string {
	if name == "" {
		return ""
	}
	if strings.Trim(name, ".") == "" {
		return strings.ReplaceAll(name, ".", "%2E")
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.' || c == '-' || c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
