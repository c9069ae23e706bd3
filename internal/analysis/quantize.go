package analysis

import "github.com/ako-systems/autoplayer/internal/midiparse"

// DefaultQuantizeGridMs is spec §4.4's default quantization grid.
const DefaultQuantizeGridMs = 30.0

// Quantize snaps each event's StartTime to the nearest gridMs boundary.
// EndTime is left untouched (spec §4.4 "Quantization"). Quantize is
// idempotent: quantizing an already-quantized stream is a no-op
// (spec §8 round-trip law).
func Quantize(events []midiparse.NoteEvent, gridMs float64) []midiparse.NoteEvent {
	if gridMs <= 0 {
		gridMs = DefaultQuantizeGridMs
	}
	gridSec := gridMs / 1000.0

	out := make([]midiparse.NoteEvent, len(events))
	for i, e := range events {
		steps := e.StartTime / gridSec
		rounded := roundHalfAwayFromZero(steps)
		e.StartTime = rounded * gridSec
		out[i] = e
	}
	return out
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
