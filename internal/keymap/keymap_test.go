package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ako-systems/autoplayer/internal/midiparse"
)

func TestDefault21KeyHasAllSlots(t *testing.T) {
	km := Default21Key()
	for _, reg := range registers {
		for d := 0; d < 7; d++ {
			_, ok := km.Get(slotName(reg, d))
			assert.True(t, ok, "missing slot %s%d", reg, d)
		}
	}
}

func TestChooseRegisterBoundaries(t *testing.T) {
	assert.Equal(t, "L", chooseRegister(48)) // C3 -> octave 3
	assert.Equal(t, "M", chooseRegister(60)) // C4 -> octave 4
	assert.Equal(t, "H", chooseRegister(72)) // C5 -> octave 5
}

func TestChooseDegreeNearestWhiteKeyDeterministic(t *testing.T) {
	// C#4 (61, pc=1) is equidistant from C(0) and D(2); ascending scan
	// order must deterministically pick C (index 0) first.
	assert.Equal(t, 0, chooseDegree(61))
	// D4 itself is an exact match.
	assert.Equal(t, 1, chooseDegree(62))
}

func TestResolveKeyDirectHit(t *testing.T) {
	km := Default21Key()
	key, ok := ResolveKey(km, 60) // C4 -> M, degree 0
	require.True(t, ok)
	assert.Equal(t, km.Slots["M1"], key)
}

func TestResolveKeyFallsBackToNeighborThenRegister(t *testing.T) {
	km := &KeyMap{Slots: map[string]string{"H1": "1"}}
	// C4 (M register, degree 0) isn't present; same-register neighbors
	// aren't present either; must fall through to H register.
	key, ok := ResolveKey(km, 60)
	require.True(t, ok)
	assert.Equal(t, "1", key)
}

func TestResolveKeyCrossRegisterPrefersExactDegreeOverNeighbor(t *testing.T) {
	// No M slots at all, so M0 (C4, register M degree 0) falls through to
	// the cross-register retry. The L register (tried first for an M
	// start) has both the exact degree-0 slot and a degree-1 neighbor;
	// the exact slot must win.
	km := &KeyMap{Slots: map[string]string{"L1": "exact", "L2": "neighbor", "H1": "hkey"}}
	key, ok := ResolveKey(km, 60) // C4 -> M register, degree 0
	require.True(t, ok)
	assert.Equal(t, "exact", key)
}

func TestResolveKeyAnyKeyLastResort(t *testing.T) {
	km := &KeyMap{Slots: map[string]string{"G7": "u"}}
	key, ok := ResolveKey(km, 60)
	require.True(t, ok)
	assert.Equal(t, "u", key)
}

func TestResolveKeyEmptyMapFails(t *testing.T) {
	km := &KeyMap{Slots: map[string]string{}}
	_, ok := ResolveKey(km, 60)
	assert.False(t, ok)
}

func TestMapperReleasesBeforePressesAtSameTime(t *testing.T) {
	events := []midiparse.NoteEvent{
		{StartTime: 0, EndTime: 1.0, Note: 60, Channel: 0},
		{StartTime: 1.0, EndTime: 2.0, Note: 62, Channel: 0},
	}
	mapper := NewMapper(Default21Key())
	out := mapper.Map(events, nil)
	require.Len(t, out, 4)

	// Find the two events at time 1.0: release of the first note must
	// precede the press of the second.
	var atOne []DispatchEvent
	for _, d := range out {
		if d.Time == 1.0 {
			atOne = append(atOne, d)
		}
	}
	require.Len(t, atOne, 2)
	assert.Equal(t, PressUp, atOne[0].Kind)
	assert.Equal(t, PressDown, atOne[1].Kind)
}

func TestMapperUsesRoleSpecificKeymap(t *testing.T) {
	def := Default21Key()
	drums := &KeyMap{Slots: map[string]string{"M1": "SPACE"}}
	mapper := NewMapper(def).WithRoleMap(RoleDrums, drums)

	events := []midiparse.NoteEvent{{StartTime: 0, EndTime: 0.5, Note: 60, Channel: 9}}
	out := mapper.Map(events, func(midiparse.NoteEvent) Role { return RoleDrums })
	require.Len(t, out, 2)
	assert.Equal(t, "SPACE", out[0].Key)
}

func TestKeyMapSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/keymap.json"

	km := Default21Key()
	require.NoError(t, km.Save(path))

	loaded, err := LoadKeyMap(path)
	require.NoError(t, err)
	assert.Equal(t, km.Slots, loaded.Slots)
}
