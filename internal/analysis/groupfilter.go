// Package analysis implements the optional note-stream transforms of
// spec §4.4: group filter, transposition, melody extraction, black-key
// post-transpose, quantization, and chord tagging. Applied in that order.
package analysis

import "github.com/ako-systems/autoplayer/internal/midiparse"

// PitchGroup names one of the named pitch bands the 127-note space is
// partitioned into (spec §4.4 "Pitch-group filter").
type PitchGroup string

const (
	GroupSubBass  PitchGroup = "Sub-bass"
	GroupLow      PitchGroup = "Low"
	GroupMidLow   PitchGroup = "Mid-low"
	GroupMid      PitchGroup = "Mid"
	GroupMidHigh  PitchGroup = "Mid-high"
	GroupHigh     PitchGroup = "High"
	GroupVeryHigh PitchGroup = "Very-high"
)

// groupBounds gives the inclusive [low, high] pitch range per band. The
// seven bands tile 0..127 without gaps: six bands of 18 notes, with the
// top band taking the remaining 20.
var groupBounds = []struct {
	Name PitchGroup
	Low  int
	High int
}{
	{GroupSubBass, 0, 17},
	{GroupLow, 18, 35},
	{GroupMidLow, 36, 53},
	{GroupMid, 54, 71},
	{GroupMidHigh, 72, 89},
	{GroupHigh, 90, 107},
	{GroupVeryHigh, 108, 127},
}

// GroupOf returns the pitch-group band a MIDI note falls into.
func GroupOf(note uint8) PitchGroup {
	n := int(note)
	for _, b := range groupBounds {
		if n >= b.Low && n <= b.High {
			return b.Name
		}
	}
	return GroupVeryHigh
}

// AllGroups returns every named pitch-group band, in ascending order.
func AllGroups() []PitchGroup {
	out := make([]PitchGroup, len(groupBounds))
	for i, b := range groupBounds {
		out[i] = b.Name
	}
	return out
}

// FilterByGroups drops notes outside the selected bands. An empty
// selection means "no filter" (spec §4.4).
func FilterByGroups(events []midiparse.NoteEvent, selected []PitchGroup) []midiparse.NoteEvent {
	for i := range events {
		events[i].Group = string(GroupOf(events[i].Note))
	}
	if len(selected) == 0 {
		return events
	}
	want := make(map[PitchGroup]bool, len(selected))
	for _, g := range selected {
		want[g] = true
	}

	out := make([]midiparse.NoteEvent, 0, len(events))
	for _, e := range events {
		if want[GroupOf(e.Note)] {
			out = append(out, e)
		}
	}
	return out
}
