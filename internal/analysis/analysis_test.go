package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ako-systems/autoplayer/internal/midiparse"
)

func note(start, end float64, pitch, channel, velocity uint8) midiparse.NoteEvent {
	return midiparse.NoteEvent{StartTime: start, EndTime: end, Note: pitch, Channel: channel, Velocity: velocity, Program: -1}
}

func TestGroupOfCoversFullRange(t *testing.T) {
	for n := 0; n <= 127; n++ {
		g := GroupOf(uint8(n))
		assert.NotEmpty(t, g)
	}
	assert.Equal(t, GroupSubBass, GroupOf(0))
	assert.Equal(t, GroupVeryHigh, GroupOf(127))
}

func TestFilterByGroupsEmptySelectionIsNoFilter(t *testing.T) {
	events := []midiparse.NoteEvent{note(0, 1, 10, 0, 100), note(0, 1, 100, 0, 100)}
	out := FilterByGroups(events, nil)
	assert.Len(t, out, 2)
}

func TestFilterByGroupsRestrictsToSelected(t *testing.T) {
	events := []midiparse.NoteEvent{note(0, 1, 10, 0, 100), note(0, 1, 100, 0, 100)}
	out := FilterByGroups(events, []PitchGroup{GroupSubBass})
	require.Len(t, out, 1)
	assert.Equal(t, uint8(10), out[0].Note)
}

func TestTransposeManualClamps(t *testing.T) {
	events := []midiparse.NoteEvent{note(0, 1, 125, 0, 100)}
	out := TransposeManual(events, 10)
	assert.Equal(t, uint8(127), out[0].Note)
}

func TestTransposeAutoWhiteKeyPrefersZeroOnTie(t *testing.T) {
	// All-white-key input: k=0 already yields ratio 1.0, so it must win
	// against any other k that also yields 1.0 (k=+5 and k=-5 do here),
	// pinning down that 0 is never displaced by an equally-good option.
	events := []midiparse.NoteEvent{note(0, 1, 60, 0, 100), note(1, 2, 62, 0, 100), note(2, 3, 64, 0, 100)}
	k, out := TransposeAutoWhiteKey(events)
	assert.Equal(t, 0, k)
	for _, e := range out {
		assert.True(t, isWhite(e.Note))
	}
}

func TestTransposeAutoWhiteKeyTieBreakSmallerMagnitudeWins(t *testing.T) {
	assert.True(t, tieBreakBetter(1, 2))
	assert.False(t, tieBreakBetter(2, 1))
	assert.True(t, tieBreakBetter(1, -1))
	assert.False(t, tieBreakBetter(-1, 1))
	assert.False(t, tieBreakBetter(3, 3))
}

func TestApplyBlackKeyTransposeNearestTieGoesDown(t *testing.T) {
	// C#4 (61): down -> C4 (60), up -> D4 (62), both distance 1 -> down wins tie.
	events := []midiparse.NoteEvent{note(0, 1, 61, 0, 100)}
	out := ApplyBlackKeyTranspose(events, BlackKeyNearest)
	assert.Equal(t, uint8(60), out[0].Note)
}

func TestApplyBlackKeyTransposeDownAlwaysRoundsDown(t *testing.T) {
	// D#4 (63): nearest down is D4(62), nearest up is E4(64), both distance
	// 1; the "down" strategy chooses 62.
	events := []midiparse.NoteEvent{note(0, 1, 63, 0, 100)}
	out := ApplyBlackKeyTranspose(events, BlackKeyDown)
	assert.Equal(t, uint8(62), out[0].Note)
}

func TestApplyBlackKeyTransposeOffIsNoOp(t *testing.T) {
	events := []midiparse.NoteEvent{note(0, 1, 61, 0, 100)}
	out := ApplyBlackKeyTranspose(events, BlackKeyOff)
	assert.Equal(t, uint8(61), out[0].Note)
}

func TestQuantizeSnapsStartLeavesEnd(t *testing.T) {
	events := []midiparse.NoteEvent{note(0.041, 0.5, 60, 0, 100)}
	out := Quantize(events, 30)
	assert.InDelta(t, 0.03, out[0].StartTime, 1e-9)
	assert.Equal(t, 0.5, out[0].EndTime)
}

func TestQuantizeIsIdempotent(t *testing.T) {
	events := []midiparse.NoteEvent{note(0.041, 0.5, 60, 0, 100)}
	once := Quantize(events, 30)
	twice := Quantize(once, 30)
	assert.Equal(t, once, twice)
}

func TestTagChordsMarksSimultaneousNotes(t *testing.T) {
	events := []midiparse.NoteEvent{
		note(1.0, 1.5, 60, 0, 100),
		note(1.0, 1.5, 64, 0, 100),
		note(2.0, 2.5, 67, 0, 100),
	}
	out := TagChords(events)
	require.Len(t, out, 3)
	chordCount := 0
	for _, e := range out {
		if e.IsChord {
			chordCount++
			assert.Equal(t, 2, e.ChordSize)
		}
	}
	assert.Equal(t, 2, chordCount)
}

func TestTagChordsSingleNoteNotAChord(t *testing.T) {
	events := []midiparse.NoteEvent{note(0, 1, 60, 0, 100)}
	out := TagChords(events)
	assert.False(t, out[0].IsChord)
	assert.Equal(t, 0, out[0].ChordSize)
}

func TestExtractMelodyPrefersHighPitchLowEntropyChannel(t *testing.T) {
	var events []midiparse.NoteEvent
	// channel 0: steady melodic line in [60,84]
	for i := 0; i < 8; i++ {
		t0 := float64(i) * 0.5
		events = append(events, note(t0, t0+0.4, uint8(60+i), 0, 100))
	}
	// channel 1: low-register chaotic accompaniment
	for i := 0; i < 8; i++ {
		t0 := float64(i)*0.37 + 0.05
		events = append(events, note(t0, t0+0.1, uint8(30+i%5), 1, 80))
	}

	cfg := DefaultMelodyConfig()
	cfg.Mode = MelodyEntropy
	out := ExtractMelody(events, cfg)
	require.NotEmpty(t, out)
	for _, e := range out {
		assert.Equal(t, uint8(0), e.Channel)
	}
}

func TestExtractMelodyRespectsPreferredChannel(t *testing.T) {
	events := []midiparse.NoteEvent{
		note(0, 0.4, 60, 2, 100),
		note(0.5, 0.9, 62, 2, 100),
	}
	cfg := DefaultMelodyConfig()
	cfg.Mode = MelodyEntropy
	ch := uint8(2)
	cfg.PreferredChannel = &ch
	out := ExtractMelody(events, cfg)
	require.Len(t, out, 2)
}

func TestExtractMelodyMinScoreRejectsTooWeakChannel(t *testing.T) {
	events := []midiparse.NoteEvent{note(0, 0.4, 30, 0, 100)}
	cfg := DefaultMelodyConfig()
	cfg.Mode = MelodyEntropy
	min := 1000.0
	cfg.MinScore = &min
	out := ExtractMelody(events, cfg)
	assert.Nil(t, out)
}

func TestMonophonicCollapseKeepsHighestInCluster(t *testing.T) {
	events := []midiparse.NoteEvent{
		note(0.0, 0.05, 60, 0, 90),
		note(0.01, 0.05, 64, 0, 90),
	}
	out := monophonicCollapse(events, 1.0, KeepHighest)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(64), out[0].Note)
}

func TestMonophonicCollapseKeepsLoudestInCluster(t *testing.T) {
	events := []midiparse.NoteEvent{
		note(0.0, 0.05, 60, 0, 40),
		note(0.01, 0.05, 64, 0, 120),
	}
	out := monophonicCollapse(events, 1.0, KeepLoudest)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(64), out[0].Note)
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	events := []midiparse.NoteEvent{
		note(0.041, 0.5, 61, 0, 100),
		note(0.041, 0.5, 65, 0, 100),
	}
	cfg := DefaultPipelineConfig()
	cfg.BlackKey = BlackKeyDown
	cfg.SkipQuantize = false
	cfg.QuantizeGridMs = 30

	result := Run(events, cfg)
	require.Len(t, result.Events, 2)
	for _, e := range result.Events {
		assert.True(t, isWhite(e.Note))
		assert.InDelta(t, 0.03, e.StartTime, 1e-9)
		assert.True(t, e.IsChord)
	}
}
