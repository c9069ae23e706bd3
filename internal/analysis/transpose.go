package analysis

import "github.com/ako-systems/autoplayer/internal/midiparse"

// whitePitchClasses is the set {C, D, E, F, G, A, B} expressed as pitch
// classes (spec §4.4 "Auto best-white-key").
var whitePitchClasses = map[int]bool{0: true, 2: true, 4: true, 5: true, 7: true, 9: true, 11: true}

// isWhite reports whether note's pitch class is a white key.
func isWhite(note uint8) bool {
	return whitePitchClasses[int(note)%12]
}

// clampPitch clamps a transposed pitch into the valid MIDI range.
func clampPitch(n int) uint8 {
	if n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return uint8(n)
}

// TransposeManual shifts every pitch by k semitones, clamped to [0,127]
// (spec §4.4 "Manual" transposition).
func TransposeManual(events []midiparse.NoteEvent, k int) []midiparse.NoteEvent {
	out := make([]midiparse.NoteEvent, len(events))
	for i, e := range events {
		e.Note = clampPitch(int(e.Note) + k)
		out[i] = e
	}
	return out
}

// TransposeAutoWhiteKey implements spec §4.4's "Auto best-white-key":
// for k in [-6,6], choose the k maximizing the fraction of notes landing
// on a white pitch class; ties broken by |k| smaller, then k >= 0.
// Returns the chosen k and the transposed sequence.
func TransposeAutoWhiteKey(events []midiparse.NoteEvent) (int, []midiparse.NoteEvent) {
	if len(events) == 0 {
		return 0, events
	}

	bestK := 0
	bestRatio := -1.0
	for k := -6; k <= 6; k++ {
		whiteCount := 0
		for _, e := range events {
			if isWhite(clampPitch(int(e.Note) + k)) {
				whiteCount++
			}
		}
		ratio := float64(whiteCount) / float64(len(events))

		if ratio > bestRatio || (ratio == bestRatio && tieBreakBetter(k, bestK)) {
			bestRatio = ratio
			bestK = k
		}
	}

	return bestK, TransposeManual(events, bestK)
}

// tieBreakBetter reports whether candidate k is preferred over current
// under the tie-break rule: smaller |k|, then k >= 0.
func tieBreakBetter(k, current int) bool {
	ak, ac := abs(k), abs(current)
	if ak != ac {
		return ak < ac
	}
	if k == current {
		return false
	}
	// equal magnitude, opposite sign (or identical): prefer k >= 0.
	return k >= 0 && current < 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
