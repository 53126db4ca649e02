// Package procmon answers whether the game process is alive.
//
// A [Monitor] lists process image names through a platform lister and
// matches them against doublestar patterns. Platforms without a lister, and
// listings that fail or time out, report [Unknown] rather than guessing.
package procmon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrUnsupported is returned by the process lister on platforms where
// process enumeration is not implemented.
var ErrUnsupported = errors.New("process enumeration not supported on this platform")

// DefaultPattern matches the TEKKEN 8 shipping executable.
const DefaultPattern = "Polaris-Win64-Shipping*"

// defaultTimeout bounds a single enumeration.
const defaultTimeout = 2 * time.Second

// ///////////////////////////////////////////////
// Status
// ///////////////////////////////////////////////

// Status is the answer to "is the game running".
type Status int

const (
	// Unknown means the monitor could not tell. Callers treat it as running.
	Unknown Status = iota
	// Running means a matching process was found.
	Running
	// NotRunning means the enumeration succeeded and nothing matched.
	NotRunning
)

// String returns the lowercase name of s.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case NotRunning:
		return "not_running"
	default:
		return "unknown"
	}
}

// ///////////////////////////////////////////////
// Monitor
// ///////////////////////////////////////////////

// Lister returns the image names of all live processes.
type Lister func(ctx context.Context) ([]string, error)

// Monitor checks for a live process whose name matches one of its patterns.
type Monitor struct {
	// patterns are lowercased doublestar patterns matched against lowercased
	// process names.
	patterns []string
	// list enumerates processes; defaults to the platform lister.
	list Lister
	// timeout bounds one enumeration.
	timeout time.Duration
}

// New returns a Monitor for the given patterns using the platform process
// lister. A zero timeout uses 2s. Patterns are validated up front.
func New(patterns []string, timeout time.Duration) (*Monitor, error) {
	return NewWithLister(patterns, timeout, listProcesses)
}

// NewWithLister is like [New] but enumerates processes with list.
func NewWithLister(patterns []string, timeout time.Duration, list Lister) (*Monitor, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		lp := strings.ToLower(p)
		if !doublestar.ValidatePattern(lp) {
			return nil, fmt.Errorf("invalid process pattern %q", p)
		}
		lowered = append(lowered, lp)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Monitor{patterns: lowered, list: list, timeout: timeout}, nil
}

// listResult carries a lister outcome back from its goroutine.
type listResult struct {
	names []string
	err   error
}

// IsRunning enumerates processes and reports whether any matches. It returns
// within the monitor timeout even if the lister hangs; the lister goroutine
// is abandoned in that case and its result discarded.
func (m *Monitor) IsRunning(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ch := make(chan listResult, 1)
	go func() {
		names, err := m.list(ctx)
		ch <- listResult{names: names, err: err}
	}()

	select {
	case <-ctx.Done():
		slog.Debug("process enumeration timed out", "timeout", m.timeout)
		return Unknown
	case res := <-ch:
		if res.err != nil {
			if errors.Is(res.err, ErrUnsupported) {
				return Unknown
			}
			slog.Debug("process enumeration failed", "error", res.err)
			return Unknown
		}
		if m.matchAny(res.names) {
			return Running
		}
		return NotRunning
	}
}

// Supported reports whether the platform has a process lister at all.
func Supported() bool {
	return platformSupported
}

// matchAny reports whether any name matches any pattern.
func (m *Monitor) matchAny(names []string) bool {
	for _, name := range names {
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		for _, p := range m.patterns {
			if ok, _ := doublestar.Match(p, lower); ok {
				return true
			}
		}
	}
	return false
}
