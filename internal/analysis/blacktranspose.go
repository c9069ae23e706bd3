package analysis

import "github.com/ako-systems/autoplayer/internal/midiparse"

// BlackKeyStrategy selects how non-white pitches are rewritten in the
// post-melody-extraction black-key transpose stage (spec §4.4).
type BlackKeyStrategy string

const (
	BlackKeyOff     BlackKeyStrategy = "off"
	BlackKeyDown    BlackKeyStrategy = "down"
	BlackKeyNearest BlackKeyStrategy = "nearest"
)

// ApplyBlackKeyTranspose rewrites non-white pitches per strategy and
// refreshes each event's Group annotation (spec §4.4 "Black-key transpose
// (post)").
func ApplyBlackKeyTranspose(events []midiparse.NoteEvent, strategy BlackKeyStrategy) []midiparse.NoteEvent {
	if strategy == BlackKeyOff {
		return events
	}

	out := make([]midiparse.NoteEvent, len(events))
	for i, e := range events {
		e.Note = rewriteToWhite(e.Note, strategy)
		e.Group = string(GroupOf(e.Note))
		out[i] = e
	}
	return out
}

func rewriteToWhite(note uint8, strategy BlackKeyStrategy) uint8 {
	if isWhite(note) {
		return note
	}

	down := nearestWhiteDown(note)
	if strategy == BlackKeyDown {
		return down
	}

	up := nearestWhiteUp(note)
	// "nearest" picks the closer of up/down, ties -> down.
	distDown := int(note) - int(down)
	distUp := int(up) - int(note)
	if distUp < distDown {
		return up
	}
	return down
}

func nearestWhiteDown(note uint8) uint8 {
	n := int(note)
	for n >= 0 {
		if isWhite(uint8(n)) {
			return uint8(n)
		}
		n--
	}
	return 0
}

func nearestWhiteUp(note uint8) uint8 {
	n := int(note)
	for n <= 127 {
		if isWhite(uint8(n)) {
			return uint8(n)
		}
		n++
	}
	return 127
}
