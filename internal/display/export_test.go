package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
)

func TestExportCSVWritesBOMAndHeader(t *testing.T) {
	events := []midiparse.NoteEvent{
		{StartTime: 0, EndTime: 0.5, Note: 60, Channel: 0, Group: "mid"},
		{StartTime: 0, EndTime: 0.5, Note: 64, Channel: 0, Group: "mid", IsChord: true, ChordSize: 2},
		{StartTime: 0, EndTime: 0.5, Note: 67, Channel: 0, Group: "mid", IsChord: true, ChordSize: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(events, &buf))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, utf8BOM))

	body := strings.TrimPrefix(string(out), string(utf8BOM))
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 4) // header + 3 rows
	assert.Contains(t, lines[0], "序号")
	assert.Contains(t, lines[0], "和弦")
}

func TestExportCSVFillsChordName(t *testing.T) {
	events := []midiparse.NoteEvent{
		{StartTime: 0, EndTime: 0.5, Note: 60, Channel: 0, IsChord: true, ChordSize: 3},
		{StartTime: 0, EndTime: 0.5, Note: 64, Channel: 0, IsChord: true, ChordSize: 3},
		{StartTime: 0, EndTime: 0.5, Note: 67, Channel: 0, IsChord: true, ChordSize: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(events, &buf))
	assert.Contains(t, buf.String(), ",C\n")
}

func TestExportKeyNotationSingleKeyPerBucket(t *testing.T) {
	events := []keymap.DispatchEvent{
		{Time: 0, Kind: keymap.PressDown, Key: "a"},
		{Time: 0, Kind: keymap.PressUp, Key: "a"},
		{Time: 0.3, Kind: keymap.PressDown, Key: "s"},
	}
	notation := ExportKeyNotation(events)
	assert.Equal(t, "a s", notation)
}

func TestExportKeyNotationBracketsSimultaneousKeys(t *testing.T) {
	events := []keymap.DispatchEvent{
		{Time: 0, Kind: keymap.PressDown, Key: "a"},
		{Time: 0, Kind: keymap.PressDown, Key: "s"},
	}
	notation := ExportKeyNotation(events)
	assert.Equal(t, "[as]", notation)
}

func TestExportKeyNotationChordKeyPrecedesMelody(t *testing.T) {
	events := []keymap.DispatchEvent{
		{Time: 0, Kind: keymap.PressDown, Key: "melody", Role: keymap.RoleMelody},
		{Time: 0, Kind: keymap.PressDown, Key: "chord", Role: keymap.RoleChord},
	}
	notation := ExportKeyNotation(events)
	assert.Equal(t, "[chordmelody]", notation)
}

func TestExportKeyNotationGapSpacing(t *testing.T) {
	events := []keymap.DispatchEvent{
		{Time: 0, Kind: keymap.PressDown, Key: "a"},
		{Time: 0.9, Kind: keymap.PressDown, Key: "s"}, // 3 buckets later
	}
	notation := ExportKeyNotation(events)
	assert.Equal(t, "a   s", notation)
}
