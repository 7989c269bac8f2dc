//go:build darwin && cgo

package transport

import (
	"portmsg/internal/port"
	"portmsg/internal/port/machport"
)

func init() {
	registerTransport(Mach, func(Options) (port.Kernel, error) {
		return machport.New(), nil
	})
}
