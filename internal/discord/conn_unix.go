// conn_unix.go discovers Discord's IPC socket on Unix-like systems (Linux,
// macOS, FreeBSD), including Snap and Flatpak locations. A WSL relay
// creates its socket in /tmp or XDG_RUNTIME_DIR, which are always probed.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// socketVariants are the socket name prefixes of stable, Canary and PTB.
var socketVariants = []string{"discord-ipc", "discordcanary-ipc", "discordptb-ipc"}

// sandboxSubdirs are per-packaging subdirectories under a runtime directory
// where sandboxed Discord builds place their socket.
var sandboxSubdirs = []string{
	"",
	"snap.discord",
	"snap.discord-canary",
	"snap.discord-ptb",
	"app/com.discordapp.Discord",
	"app/com.discordapp.DiscordCanary",
	"app/com.discordapp.DiscordPTB",
}

// dialDiscord tries each candidate socket in order and returns the first
// that accepts a connection.
func dialDiscord(timeout time.Duration) (net.Conn, error) {
	for _, path := range socketPaths(os.Getenv, os.Getuid()) {
		conn, err := net.DialTimeout("unix", path, timeout)
		if err == nil {
			return conn, nil
		}
	}

	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL, a socat + npiperelay.exe relay is required", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}

// socketPaths lists candidate socket paths in preference order, without
// duplicates. Runtime directories come from XDG_RUNTIME_DIR, TMPDIR, TMP and
// TEMP, then /run/user/<uid> and /tmp.
func socketPaths(getenv func(string) string, uid int) []string {
	var dirs []string
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := getenv(key); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, filepath.Join("/run/user", strconv.Itoa(uid)), "/tmp")

	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, dir := range dirs {
		for _, sub := range sandboxSubdirs {
			base := filepath.Join(dir, sub)
			variants := socketVariants
			if sub != "" {
				variants = socketVariants[:1]
			}
			for _, v := range variants {
				for i := range ipcSlots {
					add(filepath.Join(base, fmt.Sprintf("%s-%d", v, i)))
				}
			}
		}
	}
	return paths
}
