package analysis

import (
	"github.com/ako-systems/autoplayer/internal/midiparse"
)

// roundTo6 rounds a float to 6 decimal places, matching spec §4.4's
// "round(start_time, 6)" chord-bucketing key.
func roundTo6(v float64) float64 {
	const scale = 1_000_000.0
	return roundHalfAwayFromZero(v*scale) / scale
}

// TagChords buckets notes by round(start_time, 6) and marks any bucket
// with 2+ members as a chord (spec §4.4 "Chord tagging"). Annotation
// only — does not reorder or otherwise alter the stream.
func TagChords(events []midiparse.NoteEvent) []midiparse.NoteEvent {
	buckets := make(map[float64][]int)
	for i, e := range events {
		key := roundTo6(e.StartTime)
		buckets[key] = append(buckets[key], i)
	}

	out := make([]midiparse.NoteEvent, len(events))
	copy(out, events)

	for _, idxs := range buckets {
		if len(idxs) < 2 {
			continue
		}
		for _, i := range idxs {
			out[i].IsChord = true
			out[i].ChordSize = len(idxs)
		}
	}

	return out
}
