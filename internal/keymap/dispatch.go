package keymap

import (
	"sort"

	"github.com/ako-systems/autoplayer/internal/midiparse"
)

// Mapper resolves NoteEvents to DispatchEvents via a default KeyMap,
// with optional role-specific KeyMaps that shadow the default wholesale
// when an event carries that role (spec §4.6 "Role-specific keymaps").
type Mapper struct {
	Default  *KeyMap
	RoleMaps map[Role]*KeyMap
}

// NewMapper builds a Mapper over def, with no role overrides.
func NewMapper(def *KeyMap) *Mapper {
	return &Mapper{Default: def, RoleMaps: make(map[Role]*KeyMap)}
}

// WithRoleMap registers a role-specific KeyMap that shadows Default for
// events carrying that role.
func (m *Mapper) WithRoleMap(role Role, km *KeyMap) *Mapper {
	m.RoleMaps[role] = km
	return m
}

func (m *Mapper) mapFor(role Role) *KeyMap {
	if km, ok := m.RoleMaps[role]; ok {
		return km
	}
	return m.Default
}

// Map converts a note stream into a time-sorted DispatchEvent stream:
// one PressDown at each note's StartTime and one PressUp at its
// EndTime, with releases ordered strictly before presses at identical
// times (spec §5 "Ordering guarantees").
func (m *Mapper) Map(events []midiparse.NoteEvent, roleOf func(midiparse.NoteEvent) Role) []DispatchEvent {
	out := make([]DispatchEvent, 0, len(events)*2)
	for _, e := range events {
		role := RoleMelody
		if roleOf != nil {
			role = roleOf(e)
		}
		km := m.mapFor(role)
		key, ok := ResolveKey(km, e.Note)
		if !ok {
			continue
		}
		out = append(out,
			DispatchEvent{Time: e.StartTime, Kind: PressDown, Key: key, Note: e.Note, Channel: e.Channel, Role: role},
			DispatchEvent{Time: e.EndTime, Kind: PressUp, Key: key, Note: e.Note, Channel: e.Channel, Role: role},
		)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return kindRank(out[i].Kind) < kindRank(out[j].Kind)
	})
	return out
}

func kindRank(k DispatchKind) int {
	if k == PressUp {
		return 0
	}
	return 1
}
