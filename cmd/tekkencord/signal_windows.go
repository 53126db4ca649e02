// Windows signals that stop the bridge.

//go:build windows

package main

import "os"

// shutdownSignals returns os.Interrupt. Windows has no SIGTERM; the runtime
// maps CTRL_BREAK_EVENT and console close to os.Interrupt.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
