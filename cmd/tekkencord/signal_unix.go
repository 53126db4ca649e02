// Unix signals that stop the bridge.

//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals returns SIGINT (Ctrl+C) and SIGTERM, the signal process
// managers send to request a graceful stop.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
