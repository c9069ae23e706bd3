package partition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
)

type bucketKey struct {
	track          int
	channel        uint8
	program        int
	instrumentName string
}

// TrackChannelPartitioner groups note events by
// (track, channel, program, instrument_name) (spec §4.5).
type TrackChannelPartitioner struct {
	// RoleOverrides maps a section name to a forced role, applied on top
	// of per-event heuristics (spec §4.5 "Users may also supply a role
	// override per section name").
	RoleOverrides map[string]keymap.Role
}

// NewPartitioner returns a partitioner with no role overrides.
func NewPartitioner() *TrackChannelPartitioner {
	return &TrackChannelPartitioner{RoleOverrides: make(map[string]keymap.Role)}
}

// Partition buckets events into PartSections, synthesizing each
// section's stable name as "track{t}_ch{c}_prog{p}_{name}"
// (spec §4.5 "TrackChannelPartitioner").
func (p *TrackChannelPartitioner) Partition(events []midiparse.NoteEvent) []PartSection {
	buckets := make(map[bucketKey][]midiparse.NoteEvent)
	var order []bucketKey

	for _, e := range events {
		program := e.Program
		key := bucketKey{track: e.Track, channel: e.Channel, program: program, instrumentName: e.InstrumentName}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], e)
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.track != b.track {
			return a.track < b.track
		}
		if a.channel != b.channel {
			return a.channel < b.channel
		}
		if a.program != b.program {
			return a.program < b.program
		}
		return a.instrumentName < b.instrumentName
	})

	sections := make([]PartSection, 0, len(order))
	for _, key := range order {
		notes := buckets[key]
		name := sectionName(key)
		section := PartSection{
			Name:  name,
			Notes: notes,
			Meta: SectionMeta{
				Track:          key.track,
				Channel:        key.channel,
				Program:        key.program,
				InstrumentName: key.instrumentName,
				Count:          len(notes),
			},
		}
		if override, ok := p.RoleOverrides[name]; ok {
			section.RoleOverride = &override
		}
		sections = append(sections, section)
	}
	return sections
}

func sectionName(key bucketKey) string {
	name := key.instrumentName
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("track%d_ch%d_prog%d_%s", key.track, key.channel, key.program, name)
}

// RoleForNote applies spec §4.5's first-match-wins per-event role
// heuristics: channel 9 -> Drums; program in [32,39] or instrument name
// containing "bass" -> Bass; pitch < 48 -> Bass; else Melody.
func RoleForNote(e midiparse.NoteEvent, instrumentName string) keymap.Role {
	if e.Channel == 9 {
		return keymap.RoleDrums
	}
	if e.Program >= 32 && e.Program <= 39 {
		return keymap.RoleBass
	}
	if strings.Contains(strings.ToLower(instrumentName), "bass") {
		return keymap.RoleBass
	}
	if e.Note < 48 {
		return keymap.RoleBass
	}
	return keymap.RoleMelody
}

// RoleFor returns a section's effective role for one of its notes:
// the section's explicit override if set, else the per-event heuristic.
func (s *PartSection) RoleFor(e midiparse.NoteEvent) keymap.Role {
	if s.RoleOverride != nil {
		return *s.RoleOverride
	}
	return RoleForNote(e, s.Meta.InstrumentName)
}
