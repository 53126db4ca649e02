//go:build windows

package procmon

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const platformSupported = true

// listProcesses walks a toolhelp process snapshot and returns each entry's
// executable name.
func listProcesses(ctx context.Context) ([]string, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("create process snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("read first process: %w", err)
	}

	var names []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		names = append(names, windows.UTF16ToString(entry.ExeFile[:]))

		err := windows.Process32Next(snap, &entry)
		if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read next process: %w", err)
		}
	}
}
