package midiparse

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// unpairedDuration is the default duration assigned to a note-on that
// never sees a matching note-off (spec §3/§4.3).
const unpairedDuration = 0.2

// pendingKey identifies an open note-on awaiting its matching note-off.
type pendingKey struct {
	track   int
	channel uint8
	note    uint8
}

type pendingNote struct {
	tick     int64
	velocity uint8
	program  int
}

// Parse reads a Standard MIDI File at path and returns a time-sorted note
// event stream with tempo-integrated seconds, per spec §4.3.
func Parse(path string) (*ParseResult, error) {
	data, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("midiparse: read %s: %w", path, err)
	}
	return parseSMF(data)
}

func parseSMF(data *smf.SMF) (*ParseResult, error) {
	ppq, smpte, fps, ticksPerFrame := timeFormatOf(data)

	var tm *TempoMap
	if smpte {
		tm = NewSMPTETempoMap(fps, ticksPerFrame)
	} else {
		tm = buildTempoMapFromTracks(data, ppq)
	}

	events, err := pairNoteEvents(data, tm)
	if err != nil {
		return nil, err
	}

	return &ParseResult{Events: events, Tempo: tm, PPQ: ppq, SMPTE: smpte}, nil
}

// timeFormatOf extracts PPQ (or SMPTE fps/ticksPerFrame) from the SMF
// header, per spec §4.3 "SMPTE time base": ticks_per_beat < 0 signals
// SMPTE, with fps = |upper byte| and ticksPerFrame = lower byte.
func timeFormatOf(data *smf.SMF) (ppq int64, smpte bool, fps, ticksPerFrame int) {
	switch tf := data.TimeFormat.(type) {
	case smf.MetricTicks:
		return int64(tf), false, 0, 0
	case smf.TimeCode:
		return 0, true, int(tf.FramesPerSecond), int(tf.SubFrames)
	default:
		return 480, false, 0, 0
	}
}

// buildTempoMapFromTracks walks every track recording every set_tempo
// meta message with its absolute tick (spec §4.3 step 2).
func buildTempoMapFromTracks(data *smf.SMF, ppq int64) *TempoMap {
	type bp struct {
		Tick          int64
		MicrosPerBeat float64
	}
	var breakpoints []bp

	for _, track := range data.Tracks {
		var absTick int64
		for _, ev := range track {
			absTick += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				breakpoints = append(breakpoints, bp{Tick: absTick, MicrosPerBeat: 60_000_000.0 / bpm})
			}
		}
	}

	converted := make([]struct {
		Tick          int64
		MicrosPerBeat float64
	}, len(breakpoints))
	for i, b := range breakpoints {
		converted[i] = struct {
			Tick          int64
			MicrosPerBeat float64
		}{b.Tick, b.MicrosPerBeat}
	}

	return NewTempoMap(ppq, converted)
}

// pairNoteEvents implements spec §4.3 steps 1 and 3: merge all tracks
// into one tick-sorted stream, then pair note-on/note-off by a per-
// (track,channel,note) stack, tracking the most recent program change.
func pairNoteEvents(data *smf.SMF, tm *TempoMap) ([]NoteEvent, error) {
	type rawEvent struct {
		tick  int64
		track int
		msg   smf.Message
	}

	var raw []rawEvent
	trackNames := make(map[int]string)
	for trackIdx, track := range data.Tracks {
		var absTick int64
		for _, ev := range track {
			absTick += int64(ev.Delta)
			raw = append(raw, rawEvent{tick: absTick, track: trackIdx, msg: ev.Message})

			if _, ok := trackNames[trackIdx]; !ok && ev.Message.Type() == smf.MetaTrackNameMsg {
				var text string
				if ev.Message.GetMetaText(&text) {
					trackNames[trackIdx] = text
				}
			}
		}
	}
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].tick < raw[j].tick })

	programs := make(map[pendingKey]int) // last program-change seen per (track,channel); note is unused in the key
	pending := make(map[pendingKey][]pendingNote)
	var events []NoteEvent

	progOf := func(track int, channel uint8) int {
		if p, ok := programs[pendingKey{track: track, channel: channel}]; ok {
			return p
		}
		return -1
	}

	for _, re := range raw {
		var ch, key, vel uint8
		var prog uint8

		if re.msg.GetProgramChange(&ch, &prog) {
			programs[pendingKey{track: re.track, channel: ch}] = int(prog)
			continue
		}

		if re.msg.GetNoteOn(&ch, &key, &vel) && vel > 0 {
			pk := pendingKey{track: re.track, channel: ch, note: key}
			pending[pk] = append(pending[pk], pendingNote{
				tick:     re.tick,
				velocity: vel,
				program:  progOf(re.track, ch),
			})
			continue
		}

		isOff := re.msg.GetNoteOff(&ch, &key, &vel)
		if !isOff {
			// note_on with velocity 0 doubles as note_off, per spec §4.3.
			if re.msg.GetNoteOn(&ch, &key, &vel) && vel == 0 {
				isOff = true
			}
		}
		if isOff {
			pk := pendingKey{track: re.track, channel: ch, note: key}
			queue := pending[pk]
			if len(queue) == 0 {
				continue // stray off with nothing open
			}
			on := queue[0]
			pending[pk] = queue[1:]

			startSec := tm.TickToSeconds(on.tick)
			endSec := tm.TickToSeconds(re.tick)
			events = append(events, NoteEvent{
				StartTime:      startSec,
				EndTime:        endSec,
				Note:           key,
				Channel:        ch,
				Velocity:       on.velocity,
				Track:          re.track,
				Program:        on.program,
				InstrumentName: trackNames[re.track],
			})
		}
	}

	// Any still-pending note-on gets a default 0.2s duration (spec §4.3
	// "Unpaired events").
	for pk, queue := range pending {
		for _, on := range queue {
			startSec := tm.TickToSeconds(on.tick)
			events = append(events, NoteEvent{
				StartTime:      startSec,
				EndTime:        startSec + unpairedDuration,
				Note:           pk.note,
				Channel:        pk.channel,
				Velocity:       on.velocity,
				Track:          pk.track,
				Program:        on.program,
				InstrumentName: trackNames[pk.track],
			})
		}
	}

	sortEvents(events)
	return events, nil
}

// sortEvents applies spec §4.3's final sort rule: (time, type_rank) with
// note_off ranked before note_on at equal times. Since NoteEvent bundles
// on+off into one record, equal-start-time ordering is achieved by
// sorting primarily on StartTime, and ties are broken by track/channel/
// note for determinism (the off-before-on ordering is enforced later, at
// DispatchEvent expansion time in keymap.Mapper.Map, where press and
// release become separate records).
func sortEvents(events []NoteEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartTime != events[j].StartTime {
			return events[i].StartTime < events[j].StartTime
		}
		if events[i].Track != events[j].Track {
			return events[i].Track < events[j].Track
		}
		if events[i].Channel != events[j].Channel {
			return events[i].Channel < events[j].Channel
		}
		return events[i].Note < events[j].Note
	})
}
