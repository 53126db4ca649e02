// Package game defines the TEKKEN 8 state model published by the
// instrumentation mod: the [Mode] enum and the [GameState] snapshot.
package game

import (
	"fmt"
	"time"
)

// ///////////////////////////////////////////////
// Mode
// ///////////////////////////////////////////////

// Mode is the game screen or activity reported in the status file's
// game_mode field.
type Mode int

// Known modes. ModeUnknown covers any game_mode string the mod may add later.
const (
	ModeUnknown Mode = iota
	ModeMenu
	ModeMainMenu
	ModeCharacterSelect
	ModeStageSelect
	ModeSideSelect
	ModeSessionRoom
	ModeLoading
	ModePractice
	ModeBattle
	ModeResult
	ModeStartup
	ModeGameClosed
)

// modeNames maps each known mode to its status file spelling.
var modeNames = map[Mode]string{
	ModeMenu:            "menu",
	ModeMainMenu:        "main_menu",
	ModeCharacterSelect: "character_select",
	ModeStageSelect:     "stage_select",
	ModeSideSelect:      "side_select",
	ModeSessionRoom:     "session_room",
	ModeLoading:         "loading",
	ModePractice:        "practice",
	ModeBattle:          "battle",
	ModeResult:          "result",
	ModeStartup:         "startup",
	ModeGameClosed:      "game_closed",
}

// modesByName is the inverse of modeNames.
var modesByName = func() map[string]Mode {
	m := make(map[string]Mode, len(modeNames))
	for mode, name := range modeNames {
		m[name] = mode
	}
	return m
}()

// AllModes returns every known mode in declaration order. ModeUnknown is not
// included.
func AllModes() []Mode {
	modes := make([]Mode, 0, len(modeNames))
	for m := ModeMenu; m <= ModeGameClosed; m++ {
		modes = append(modes, m)
	}
	return modes
}

// ParseMode returns the mode for a status file game_mode value, or
// ModeUnknown if the value is not recognized.
func ParseMode(s string) Mode {
	if m, ok := modesByName[s]; ok {
		return m
	}
	return ModeUnknown
}

// LookupMode is like [ParseMode] but reports whether s was recognized.
func LookupMode(s string) (Mode, bool) {
	m, ok := modesByName[s]
	return m, ok
}

// String returns the status file spelling of m, or "unknown".
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Combat reports whether m belongs to the fighting family (battle and
// practice), where the presence shows the selected characters.
func (m Mode) Combat() bool {
	return m == ModeBattle || m == ModePractice
}

// MarshalText implements [encoding.TextMarshaler].
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. Unrecognized values
// decode to ModeUnknown rather than failing so a newer mod does not break
// parsing.
func (m *Mode) UnmarshalText(text []byte) error {
	*m = ParseMode(string(text))
	return nil
}

// ///////////////////////////////////////////////
// GameState
// ///////////////////////////////////////////////

// UnknownCharacter is the sentinel the mod writes when a player slot has no
// character yet.
const UnknownCharacter = "unknown"

// GameState is one parsed snapshot of the status file. Character fields are
// empty when the mod reported [UnknownCharacter]; ObservedAt is zero when the
// file carried no timestamp.
type GameState struct {
	Mode        Mode
	P1Character string
	P2Character string
	ObservedAt  time.Time
}

// NormalizeCharacter maps the mod's "unknown" sentinel to the empty string.
func NormalizeCharacter(name string) string {
	if name == UnknownCharacter {
		return ""
	}
	return name
}

// Equal reports whether s and o describe the same snapshot.
func (s GameState) Equal(o GameState) bool {
	return s.Mode == o.Mode &&
		s.P1Character == o.P1Character &&
		s.P2Character == o.P2Character &&
		s.ObservedAt.Equal(o.ObservedAt)
}

// String renders s for log output.
func (s GameState) String() string {
	p1, p2 := s.P1Character, s.P2Character
	if p1 == "" {
		p1 = UnknownCharacter
	}
	if p2 == "" {
		p2 = UnknownCharacter
	}
	return fmt.Sprintf("%s(%s vs %s)", s.Mode, p1, p2)
}
