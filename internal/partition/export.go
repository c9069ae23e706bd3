package partition

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ExportSMF writes a single PartSection back out as a standalone SMF1
// file, preserving the original tempo map's ticks-per-quarter-note so
// the section replays at its original tempo when reopened.
func ExportSMF(section PartSection, ppq int64, tempoMicrosPerBeat float64, w io.Writer) error {
	out := smf.NewSMF1()
	out.TimeFormat = smf.MetricTicks(ppq)

	var tempoTrack smf.Track
	tempoTrack = append(tempoTrack, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTempo(60_000_000.0 / tempoMicrosPerBeat))})
	tempoTrack = append(tempoTrack, smf.Event{Delta: 0, Message: smf.EOT})
	out.Add(tempoTrack)

	track := buildTrack(section, ppq, tempoMicrosPerBeat)
	out.Add(track)

	_, err := out.WriteTo(w)
	if err != nil {
		return fmt.Errorf("writing partition SMF: %w", err)
	}
	return nil
}

type tickedNote struct {
	tick int64
	note uint8
	on   bool
	vel  uint8
}

// buildTrack converts a section's paired note events back into an
// interleaved, delta-encoded note-on/note-off event stream, with
// note-offs ordered strictly before note-ons at identical ticks
// (grounded on leafo-songtool's gm_export.go createMidiTrack sort rule).
func buildTrack(section PartSection, ppq int64, tempoMicrosPerBeat float64) smf.Track {
	track := smf.Track{}
	track = append(track, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTrackSequenceName(section.Name))})
	if section.Meta.Channel != 9 && section.Meta.Program >= 0 {
		track = append(track, smf.Event{Delta: 0, Message: smf.Message(midi.ProgramChange(section.Meta.Channel, uint8(section.Meta.Program)))})
	}

	secondsPerTick := 0.5 / float64(ppq)
	if ppq > 0 && tempoMicrosPerBeat > 0 {
		secondsPerTick = (tempoMicrosPerBeat / 1_000_000.0) / float64(ppq)
	}

	events := make([]tickedNote, 0, len(section.Notes)*2)
	for _, n := range section.Notes {
		events = append(events,
			tickedNote{tick: int64(n.StartTime / secondsPerTick), note: n.Note, on: true, vel: n.Velocity},
			tickedNote{tick: int64(n.EndTime / secondsPerTick), note: n.Note, on: false, vel: 0},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		// off-before-on at identical ticks.
		return !events[i].on && events[j].on
	})

	var last int64
	for _, e := range events {
		delta := uint32(e.tick - last)
		var msg smf.Message
		if e.on {
			msg = smf.Message(midi.NoteOn(section.Meta.Channel, e.note, e.vel))
		} else {
			msg = smf.Message(midi.NoteOff(section.Meta.Channel, e.note))
		}
		track = append(track, smf.Event{Delta: delta, Message: msg})
		last = e.tick
	}

	track = append(track, smf.Event{Delta: 0, Message: smf.EOT})
	return track
}
