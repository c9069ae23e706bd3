// Package partition implements C5, the track/channel partitioner:
// grouping parsed note events into PartSections and inferring each
// section's musical role.
package partition

import (
	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
)

// SectionMeta carries the identifying attributes a PartSection was
// bucketed by, plus size/role bookkeeping (spec §3 "PartSection").
type SectionMeta struct {
	Track          int
	Channel        uint8
	Program        int
	InstrumentName string
	Count          int
	Hint           string
}

// PartSection groups the note events sharing one (track, channel,
// program, instrument_name) key under a stable synthesized name
// (spec §3, §4.5).
type PartSection struct {
	Name  string
	Notes []midiparse.NoteEvent
	Meta  SectionMeta
	// RoleOverride, when non-nil, overrides per-event role heuristics for
	// every note in this section (spec §4.5 "A section's meta may carry
	// role explicitly; when present, it overrides heuristics").
	RoleOverride *keymap.Role
}
