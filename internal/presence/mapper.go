// Package presence turns game state into Discord Rich Presence and keeps the
// single Discord session alive.
//
// [Mapper] is pure: it looks the mode up in a [Table] and applies the
// character-aware overrides for combat and loading screens. [Connector] owns
// the session lifecycle and the connection health bookkeeping around a
// [Client].
package presence

import (
	"fmt"
	"strings"
	"time"

	"tools.zach/dev/tekkencord/internal/game"
)

// Descriptor is the presence derived from one game state.
type Descriptor struct {
	Details    string
	State      string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
	// Start is the beginning of the elapsed timer.
	Start time.Time
}

// Mapper maps game states to descriptors using a fixed table.
type Mapper struct {
	table Table
	now   func() time.Time
}

// NewMapper validates table and returns a mapper over a private copy of it.
// A nil now uses [time.Now].
func NewMapper(table Table, now func() time.Time) (*Mapper, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid presence table: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &Mapper{table: table.Clone(), now: now}, nil
}

// Map returns the descriptor for s. Equal states yield equal descriptors as
// long as s carries a timestamp.
func (m *Mapper) Map(s game.GameState) Descriptor {
	entry, ok := m.table.Modes[s.Mode]
	if !ok {
		entry = m.table.Default
	}

	d := Descriptor{
		Details:    entry.Details,
		State:      entry.State,
		LargeImage: entry.LargeImage,
		LargeText:  m.table.LargeText,
		SmallImage: m.table.GenericAsset,
		SmallText:  m.table.SmallText,
		Start:      s.ObservedAt,
	}
	if d.Start.IsZero() {
		d.Start = m.now()
	}

	if s.P1Character == "" {
		return d
	}

	switch {
	case s.Mode.Combat():
		m.applyCharacter(&d, s)
		if s.Mode == game.ModePractice && m.table.TrainingWith != "" {
			d.State = m.format(m.table.TrainingWith, s)
		}
	case s.Mode == game.ModeLoading:
		m.applyCharacter(&d, s)
	}
	return d
}

// applyCharacter sets the versus details line and the P1 character art.
func (m *Mapper) applyCharacter(d *Descriptor, s game.GameState) {
	if s.P2Character != "" {
		d.Details = m.format(m.table.Versus, s)
	} else {
		d.Details = m.format(m.table.PlayingAs, s)
	}
	d.SmallImage = m.CharacterAsset(s.P1Character)
	d.SmallText = s.P1Character
}

// CharacterAsset returns the asset key for name, or the generic asset.
func (m *Mapper) CharacterAsset(name string) string {
	if asset, ok := m.table.Characters[name]; ok {
		return asset
	}
	return m.table.GenericAsset
}

func (m *Mapper) format(pattern string, s game.GameState) string {
	return strings.NewReplacer(
		PlaceholderP1, s.P1Character,
		PlaceholderP2, s.P2Character,
	).Replace(pattern)
}
