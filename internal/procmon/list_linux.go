//go:build linux

package procmon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const platformSupported = true

// listProcesses reads process names from /proc.
func listProcesses(ctx context.Context) ([]string, error) {
	return listProcessesFrom(ctx, "/proc")
}

// listProcessesFrom is the testable implementation of listProcesses. It
// accepts the proc root so tests can point at a synthetic tree.
//
// For every numeric entry it reports the kernel comm name and the base name
// of argv[0]. comm is truncated to 15 bytes, so the argv[0] base name is what
// matches Windows executables running under Wine or Proton, whose argv[0] is
// a path such as Z:\...\Polaris-Win64-Shipping.exe.
func listProcessesFrom(ctx context.Context, procRoot string) ([]string, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", procRoot, err)
	}

	var names []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || !isPID(e.Name()) {
			continue
		}
		dir := filepath.Join(procRoot, e.Name())
		if comm, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
			names = append(names, strings.TrimSpace(string(comm)))
		}
		if cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
			if argv0 := firstArg(cmdline); argv0 != "" {
				names = append(names, exeBase(argv0))
			}
		}
	}
	return names, nil
}

// isPID reports whether name is all digits.
func isPID(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// firstArg returns argv[0] from a NUL-separated cmdline.
func firstArg(cmdline []byte) string {
	if i := bytes.IndexByte(cmdline, 0); i >= 0 {
		cmdline = cmdline[:i]
	}
	return strings.TrimSpace(string(cmdline))
}

// exeBase strips both Unix and Windows directory separators.
func exeBase(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
