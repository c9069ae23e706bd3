package partition

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
)

func ev(track int, channel uint8, program int, name string, note uint8, start, end float64) midiparse.NoteEvent {
	return midiparse.NoteEvent{Track: track, Channel: channel, Program: program, InstrumentName: name, Note: note, StartTime: start, EndTime: end, Velocity: 100}
}

func TestPartitionBucketsByTrackChannelProgramName(t *testing.T) {
	events := []midiparse.NoteEvent{
		ev(0, 0, 0, "Piano", 60, 0, 1),
		ev(0, 0, 0, "Piano", 64, 1, 2),
		ev(0, 1, 33, "Bass", 40, 0, 1),
	}
	p := NewPartitioner()
	sections := p.Partition(events)
	require.Len(t, sections, 2)
	assert.Equal(t, "track0_ch0_prog0_Piano", sections[0].Name)
	assert.Len(t, sections[0].Notes, 2)
}

func TestRoleForNoteChannel9IsDrums(t *testing.T) {
	e := ev(0, 9, 0, "Kit", 38, 0, 0.1)
	assert.Equal(t, keymap.RoleDrums, RoleForNote(e, "Kit"))
}

func TestRoleForNoteBassProgramRange(t *testing.T) {
	e := ev(0, 2, 33, "Finger Bass", 40, 0, 0.1)
	assert.Equal(t, keymap.RoleBass, RoleForNote(e, "Finger Bass"))
}

func TestRoleForNoteLowPitchIsBass(t *testing.T) {
	e := ev(0, 2, 0, "Synth", 30, 0, 0.1)
	assert.Equal(t, keymap.RoleBass, RoleForNote(e, "Synth"))
}

func TestRoleForNoteDefaultsToMelody(t *testing.T) {
	e := ev(0, 2, 0, "Synth", 72, 0, 0.1)
	assert.Equal(t, keymap.RoleMelody, RoleForNote(e, "Synth"))
}

func TestSectionRoleOverrideWins(t *testing.T) {
	events := []midiparse.NoteEvent{ev(0, 0, 0, "Lead", 72, 0, 1)}
	p := NewPartitioner()
	p.RoleOverrides["track0_ch0_prog0_Lead"] = keymap.RoleChord
	sections := p.Partition(events)
	require.Len(t, sections, 1)
	assert.Equal(t, keymap.RoleChord, sections[0].RoleFor(events[0]))
}

func TestExportSMFWritesNonEmptyStream(t *testing.T) {
	section := PartSection{
		Name:  "track0_ch0_prog0_Piano",
		Notes: []midiparse.NoteEvent{ev(0, 0, 0, "Piano", 60, 0, 0.5)},
		Meta:  SectionMeta{Channel: 0, Program: 0},
	}
	var buf bytes.Buffer
	err := ExportSMF(section, 480, 500000, &buf)
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
}
