package keymap

import (
	"encoding/json"
	"os"
)

// KeyMap is a mapping from symbolic slot (e.g. "L1".."H7", or a chord
// name like "G7") to an OS keysym string (spec §3 "KeyMap").
type KeyMap struct {
	Slots map[string]string `json:"slots"`
}

// registers and degrees define the default 21-key layout's slot space:
// {L,M,H} x {1..7}, degree N corresponding to the Nth diatonic white-key
// pitch class in ascending order (spec §4.6).
var registers = []string{"L", "M", "H"}
var degreeKeys21 = map[string][7]string{
	"L": {"z", "x", "c", "v", "b", "n", "m"},
	"M": {"a", "s", "d", "f", "g", "h", "j"},
	"H": {"1", "2", "3", "4", "5", "6", "7"},
}

// Default21Key builds the default 21-key layout (spec §4.6 "e.g. L1=a,
// M1=q, H1=1" — illustrative in the spec; this implementation's concrete
// character choices are arbitrary but internally consistent and fully
// populated for all 21 slots).
func Default21Key() *KeyMap {
	km := &KeyMap{Slots: make(map[string]string, 21+7)}
	for _, reg := range registers {
		keys := degreeKeys21[reg]
		for d := 0; d < 7; d++ {
			km.Slots[slotName(reg, d)] = keys[d]
		}
	}
	// chord row, per spec §4.6's chord-row slot names.
	for name, key := range map[string]string{
		"C": "q", "Dm": "w", "Em": "e", "F": "r", "G": "t", "Am": "y", "G7": "u",
	} {
		km.Slots[name] = key
	}
	return km
}

func slotName(register string, degree int) string {
	return register + degreeOrdinal(degree)
}

func degreeOrdinal(degree int) string {
	return [...]string{"1", "2", "3", "4", "5", "6", "7"}[degree%7]
}

// Get returns the keysym for slot, and whether it was present.
func (km *KeyMap) Get(slot string) (string, bool) {
	k, ok := km.Slots[slot]
	return k, ok
}

// Set assigns slot to key, creating the map if necessary.
func (km *KeyMap) Set(slot, key string) {
	if km.Slots == nil {
		km.Slots = make(map[string]string)
	}
	km.Slots[slot] = key
}

// LoadKeyMap reads a KeyMap from a JSON file (spec §3: "persisted to JSON").
func LoadKeyMap(path string) (*KeyMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var km KeyMap
	if err := json.Unmarshal(data, &km); err != nil {
		return nil, err
	}
	if km.Slots == nil {
		km.Slots = make(map[string]string)
	}
	return &km, nil
}

// Save persists km to path as indented JSON.
func (km *KeyMap) Save(path string) error {
	data, err := json.MarshalIndent(km, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
