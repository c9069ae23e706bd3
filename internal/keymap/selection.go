package keymap

import "sort"

// whiteDegrees are the diatonic white-key pitch classes in ascending
// order (spec §4.6 step 2).
var whiteDegrees = [7]int{0, 2, 4, 5, 7, 9, 11}

// registerPriority gives the fallback register search order for each
// starting register (spec §4.6 step 4).
var registerPriority = map[string][]string{
	"L": {"M", "H"},
	"M": {"L", "H"},
	"H": {"M", "L"},
}

// chooseRegister maps a pitch to L/M/H by octave (spec §4.6 step 1).
func chooseRegister(note uint8) string {
	octave := int(note)/12 - 1
	switch {
	case octave <= 3:
		return "L"
	case octave == 4:
		return "M"
	default:
		return "H"
	}
}

// chooseDegree finds the index (0..6) into whiteDegrees whose pitch
// class is nearest to note's pitch class, scanning ascending so ties
// deterministically resolve to the first (lowest) candidate encountered
// (spec §4.6 step 2).
func chooseDegree(note uint8) int {
	pc := int(note) % 12
	best := 0
	bestDist := 999
	for i, d := range whiteDegrees {
		dist := circularDist(pc, d)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

func circularDist(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d
}

// ResolveKey implements spec §4.6's full slot-selection and fallback
// cascade: register+degree lookup, same-register neighbor scan, cross-
// register retry, then any available key in deterministic order.
func ResolveKey(km *KeyMap, note uint8) (string, bool) {
	register := chooseRegister(note)
	degree := chooseDegree(note)

	if key, ok := km.Get(slotName(register, degree)); ok {
		return key, true
	}

	if key, ok := scanNeighbors(km, register, degree); ok {
		return key, true
	}

	for _, reg := range registerPriority[register] {
		if key, ok := km.Get(slotName(reg, degree)); ok {
			return key, true
		}
		if key, ok := scanNeighbors(km, reg, degree); ok {
			return key, true
		}
	}

	return anyKey(km)
}

// scanNeighbors alternates left/right from degree within register:
// +1, -1, +2, -2, ... until all 7 degrees are tried.
func scanNeighbors(km *KeyMap, register string, degree int) (string, bool) {
	for offset := 1; offset <= 6; offset++ {
		for _, sign := range []int{1, -1} {
			d := ((degree+sign*offset)%7 + 7) % 7
			if key, ok := km.Get(slotName(register, d)); ok {
				return key, true
			}
		}
	}
	return "", false
}

// anyKey returns a key from the map in deterministic (sorted slot-name)
// order, used as the final fallback (spec §4.6 step 4).
func anyKey(km *KeyMap) (string, bool) {
	if len(km.Slots) == 0 {
		return "", false
	}
	slots := make([]string, 0, len(km.Slots))
	for s := range km.Slots {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return km.Slots[slots[0]], true
}
