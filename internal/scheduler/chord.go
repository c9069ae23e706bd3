package scheduler

// chordPattern is one entry in the ordered chord-recognition table
// (spec §4.7 step 6).
type chordPattern struct {
	Name    string
	Root    int
	Classes map[int]bool
}

// chordPatterns is the ordered pattern list; order matters for
// triad7/triad (first subset match wins). Root is the chord's root
// pitch class, used to deterministically drop the root's melody key
// (spec §4.7 step 8) instead of picking an arbitrary chord tone.
var chordPatterns = []chordPattern{
	{"G7", 7, setOf(7, 11, 2, 5)},
	{"C", 0, setOf(0, 4, 7)},
	{"Dm", 2, setOf(2, 5, 9)},
	{"Em", 4, setOf(4, 7, 11)},
	{"F", 5, setOf(5, 9, 0)},
	{"G", 7, setOf(7, 11, 2)},
	{"Am", 9, setOf(9, 0, 4)},
}

func setOf(classes ...int) map[int]bool {
	m := make(map[int]bool, len(classes))
	for _, c := range classes {
		m[c] = true
	}
	return m
}

// DetectChord implements spec §4.7 step 6: given the pitch classes
// present in a press batch, find the matching chord under mode.
// triad7 scans the full ordered list; triad excludes G7; greedy picks
// the pattern with the largest intersection (>= 2 members).
func DetectChord(pcs map[int]bool, mode ChordMode) (string, bool) {
	if len(pcs) == 0 {
		return "", false
	}

	switch mode {
	case ChordGreedy:
		bestName := ""
		bestOverlap := 1 // require >= 2
		for _, p := range chordPatterns {
			overlap := intersectionSize(pcs, p.Classes)
			if overlap > bestOverlap {
				bestOverlap = overlap
				bestName = p.Name
			}
		}
		if bestName == "" {
			return "", false
		}
		return bestName, true

	case ChordTriad:
		for _, p := range chordPatterns {
			if p.Name == "G7" {
				continue
			}
			if isSubset(p.Classes, pcs) {
				return p.Name, true
			}
		}
		return "", false

	default: // triad7
		for _, p := range chordPatterns {
			if isSubset(p.Classes, pcs) {
				return p.Name, true
			}
		}
		return "", false
	}
}

func isSubset(subset, superset map[int]bool) bool {
	for c := range subset {
		if !superset[c] {
			return false
		}
	}
	return true
}

func intersectionSize(a, b map[int]bool) int {
	count := 0
	for c := range a {
		if b[c] {
			count++
		}
	}
	return count
}

// classesOf returns the set of pitch classes a batch of notes spans.
func classesOf(notes []uint8) map[int]bool {
	out := make(map[int]bool, len(notes))
	for _, n := range notes {
		out[int(n)%12] = true
	}
	return out
}
