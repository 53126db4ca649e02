// Package status reads the JSON status file written by the TEKKEN 8
// instrumentation mod and watches its directory for changes.
//
// [Source] turns the file into a [Reading]: a parsed [game.GameState], the
// terminal "game closed" signal, or Empty when there is nothing usable.
// [Watcher] is a latency optimization only; it wakes the caller when the file
// is written but never reads it.
package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"time"

	"tools.zach/dev/tekkencord/internal/game"
)

// ///////////////////////////////////////////////
// Reading
// ///////////////////////////////////////////////

// Kind classifies the result of a status file read.
type Kind int

const (
	// Empty means the file is missing, zero length, or not a valid status
	// document.
	Empty Kind = iota
	// Snapshot means Reading.State holds a freshly parsed game state.
	Snapshot
	// Terminal means the mod reported game_mode "game_closed".
	Terminal
)

// String returns the lowercase name of k.
func (k Kind) String() string {
	switch k {
	case Snapshot:
		return "snapshot"
	case Terminal:
		return "terminal"
	default:
		return "empty"
	}
}

// Reading is the outcome of one [Source.Read]. State is only meaningful when
// Kind is Snapshot.
type Reading struct {
	Kind  Kind
	State game.GameState
}

// ///////////////////////////////////////////////
// Wire format
// ///////////////////////////////////////////////

// document is the on-disk JSON schema. game_mode is a pointer so a missing
// field can be told apart from an empty string.
type document struct {
	GameMode    *string     `json:"game_mode"`
	P1Character string      `json:"p1_character"`
	P2Character string      `json:"p2_character"`
	Timestamp   json.Number `json:"timestamp"`
}

// defaultMode is used when the document has no game_mode field.
const defaultMode = "menu"

// Parse decodes a status document. It returns an error for anything that is
// not a JSON object with well-typed fields; callers map errors to Empty.
func Parse(data []byte) (Reading, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Reading{}, errors.New("empty document")
	}
	if trimmed[0] != '{' {
		return Reading{}, errors.New("document is not a JSON object")
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Reading{}, fmt.Errorf("decode status: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Reading{}, errors.New("decode status: trailing data after document")
	}

	modeName := defaultMode
	if doc.GameMode != nil {
		modeName = *doc.GameMode
	}
	mode := game.ParseMode(modeName)
	if mode == game.ModeGameClosed {
		return Reading{Kind: Terminal}, nil
	}

	observed, err := parseTimestamp(doc.Timestamp)
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Kind: Snapshot,
		State: game.GameState{
			Mode:        mode,
			P1Character: game.NormalizeCharacter(doc.P1Character),
			P2Character: game.NormalizeCharacter(doc.P2Character),
			ObservedAt:  observed,
		},
	}, nil
}

// parseTimestamp converts the optional unix-seconds field. Zero or missing
// yields the zero time. Fractional values are truncated.
func parseTimestamp(n json.Number) (time.Time, error) {
	if n == "" {
		return time.Time{}, nil
	}
	if secs, err := n.Int64(); err == nil {
		if secs <= 0 {
			return time.Time{}, nil
		}
		return time.Unix(secs, 0), nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", n.String())
	}
	if f <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(int64(f), 0), nil
}

// ///////////////////////////////////////////////
// Source
// ///////////////////////////////////////////////

// Source reads the status file at a fixed path. It holds no state between
// reads and never retries; polling cadence belongs to the caller.
type Source struct {
	path string
}

// NewSource returns a Source for the status file at path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Path returns the status file path.
func (s *Source) Path() string { return s.path }

// Read returns the current contents of the status file. All I/O and parse
// failures degrade to an Empty reading.
func (s *Source) Read() Reading {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("status file not readable", "path", s.path, "error", err)
		}
		return Reading{Kind: Empty}
	}
	if len(data) == 0 {
		return Reading{Kind: Empty}
	}
	r, err := Parse(data)
	if err != nil {
		slog.Debug("status file not parseable", "path", s.path, "error", err)
		return Reading{Kind: Empty}
	}
	return r
}

// Exists reports whether the status file is present.
func (s *Source) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Remove deletes the status file. A file that is already gone is not an
// error.
func (s *Source) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove status file: %w", err)
	}
	return nil
}
