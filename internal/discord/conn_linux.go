// conn_linux.go detects WSL. Under WSL2 Discord runs on the Windows host and
// its named pipe is only reachable through a relay such as:
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"

//go:build linux

package discord

import (
	"os"
	"strings"
	"sync"
)

var (
	wslOnce sync.Once
	wslFlag bool
)

// isWSL reports whether the process runs inside WSL. The result is cached.
func isWSL() bool {
	wslOnce.Do(func() {
		data, err := os.ReadFile("/proc/version")
		if err != nil {
			return
		}
		wslFlag = strings.Contains(strings.ToLower(string(data)), "microsoft")
	})
	return wslFlag
}
