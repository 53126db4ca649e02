//go:build !linux && !windows

package procmon

import "context"

const platformSupported = false

// listProcesses is not implemented here; the monitor reports Unknown.
func listProcesses(context.Context) ([]string, error) {
	return nil, ErrUnsupported
}
