// conn_windows.go connects to Discord through its named pipes
// (\\.\pipe\discord-ipc-N) using go-winio.

//go:build windows

package discord

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialDiscord tries each named pipe slot and returns the first that accepts
// a connection. timeout bounds each individual dial.
func dialDiscord(timeout time.Duration) (net.Conn, error) {
	for i := range ipcSlots {
		conn, err := winio.DialPipe(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), &timeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}
