package display

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
	"github.com/ako-systems/autoplayer/internal/scheduler"
)

// utf8BOM is the three-byte UTF-8 byte order mark spec §6 requires ahead
// of the CSV event table (no library in the pack wraps this literal).
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvHeader is spec §6's literal column list.
var csvHeader = []string{"序号", "开始(s)", "类型", "音符", "通道", "组", "结束(s)", "时长(s)", "和弦"}

// ExportCSV writes the displayed event table as UTF-8-with-BOM CSV,
// one row per note event, grounded on display/terminal.go's ShowTrack
// tabular rendering style generalized from fixed-width text to CSV.
func ExportCSV(events []midiparse.NoteEvent, w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("display: writing BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("display: writing csv header: %w", err)
	}

	chordNames := chordNamesByBucket(events)

	for i, e := range events {
		eventType := "note"
		chordName := ""
		if e.IsChord {
			eventType = "chord"
			chordName = chordNames[bucketKey(e.StartTime)]
		}
		row := []string{
			strconv.Itoa(i + 1),
			formatSeconds(e.StartTime),
			eventType,
			strconv.Itoa(int(e.Note)),
			strconv.Itoa(int(e.Channel)),
			e.Group,
			formatSeconds(e.EndTime),
			formatSeconds(e.EndTime - e.StartTime),
			chordName,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("display: writing csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

// bucketKey rounds a start time to 6 decimal places, matching spec
// §4.4's chord-tagging bucket rule.
func bucketKey(t float64) float64 {
	return math.Round(t*1e6) / 1e6
}

// chordNamesByBucket re-detects each chord-tagged bucket's chord symbol
// (triad7 mode) for the CSV's 和弦 column, reusing scheduler.DetectChord
// rather than re-deriving chord matching here.
func chordNamesByBucket(events []midiparse.NoteEvent) map[float64]string {
	buckets := make(map[float64][]uint8)
	for _, e := range events {
		if !e.IsChord {
			continue
		}
		k := bucketKey(e.StartTime)
		buckets[k] = append(buckets[k], e.Note)
	}

	names := make(map[float64]string, len(buckets))
	for k, notes := range buckets {
		pcs := make(map[int]bool, len(notes))
		for _, n := range notes {
			pcs[int(n)%12] = true
		}
		if name, ok := scheduler.DetectChord(pcs, scheduler.ChordTriad7); ok {
			names[k] = name
		}
	}
	return names
}

// notationUnitSeconds is the key-notation export's fixed time-bucket
// width (spec §6).
const notationUnitSeconds = 0.3

// ExportKeyNotation renders a dispatch-event stream (already mapped to
// keys) into spec §6's single-string key notation: one time unit of
// 0.3s per bucket, multi-key buckets wrapped in brackets, chord keys
// emitted before melody keys within a bucket, and inter-bucket gaps
// rendered as runs of spaces proportional to elapsed buckets.
func ExportKeyNotation(events []keymap.DispatchEvent) string {
	type bucket struct {
		index int
		keys  []string
	}

	perBucket := make(map[int][]keymap.DispatchEvent)
	for _, e := range events {
		if e.Kind != keymap.PressDown {
			continue
		}
		idx := int(math.Round(e.Time / notationUnitSeconds))
		perBucket[idx] = append(perBucket[idx], e)
	}
	if len(perBucket) == 0 {
		return ""
	}

	indices := make([]int, 0, len(perBucket))
	for idx := range perBucket {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	buckets := make([]bucket, 0, len(indices))
	for _, idx := range indices {
		es := perBucket[idx]
		sort.SliceStable(es, func(i, j int) bool {
			return notationRoleRank(es[i].Role) < notationRoleRank(es[j].Role)
		})
		keys := make([]string, 0, len(es))
		for _, e := range es {
			keys = append(keys, e.Key)
		}
		buckets = append(buckets, bucket{index: idx, keys: keys})
	}

	var b strings.Builder
	for i, bk := range buckets {
		if i > 0 {
			gap := bk.index - buckets[i-1].index
			if gap < 1 {
				gap = 1
			}
			b.WriteString(strings.Repeat(" ", gap))
		}
		if len(bk.keys) > 1 {
			b.WriteString("[")
			b.WriteString(strings.Join(bk.keys, ""))
			b.WriteString("]")
		} else {
			b.WriteString(bk.keys[0])
		}
	}
	return b.String()
}

// notationRoleRank orders chord keys before melody/bass/drum keys
// within a bucket (spec §6 "chord symbols ... emitted before the
// melody keys").
func notationRoleRank(r keymap.Role) int {
	if r == keymap.RoleChord {
		return 0
	}
	return 1
}
