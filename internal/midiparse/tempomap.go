// Package midiparse reads a Standard MIDI File and produces a time-sorted
// stream of NoteEvents with accurate seconds, per spec §4.3.
package midiparse

import "sort"

// tempoEntry is one (tick, microseconds_per_beat) breakpoint with its
// precomputed cumulative seconds, mirroring spec §3's TempoMap.
type tempoEntry struct {
	tick          int64
	microsPerBeat float64
	accSeconds    float64
}

// TempoMap is the tempo-segmented tick->seconds integrator of spec §3/§4.3.
// For SMPTE-timed files it instead uses a constant seconds-per-tick.
type TempoMap struct {
	ppq     int64
	entries []tempoEntry

	// smpte, when true, uses a fixed secondsPerTick instead of walking
	// entries (spec §4.3 "SMPTE time base").
	smpte         bool
	secondsPerTick float64
}

// NewTempoMap builds a tempo map from a set of (tick, microsPerBeat)
// breakpoints at the given pulses-per-quarter-note resolution. Entries at
// duplicate ticks keep the last one seen (spec §4.3 step 2). The list is
// sorted by tick and a tick-0 entry is synthesized (default 500000us/beat,
// 120 BPM) if the caller didn't supply one.
func NewTempoMap(ppq int64, breakpoints []struct {
	Tick          int64
	MicrosPerBeat float64
}) *TempoMap {
	dedup := make(map[int64]float64, len(breakpoints))
	order := make([]int64, 0, len(breakpoints))
	for _, bp := range breakpoints {
		if _, seen := dedup[bp.Tick]; !seen {
			order = append(order, bp.Tick)
		}
		dedup[bp.Tick] = bp.MicrosPerBeat // last one wins
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	if len(order) == 0 || order[0] != 0 {
		order = append([]int64{0}, order...)
		dedup[0] = 500000
	}

	tm := &TempoMap{ppq: ppq}
	acc := 0.0
	var prevTick int64
	var prevTempo float64
	for i, tick := range order {
		tempo := dedup[tick]
		if i > 0 {
			secondsPerTick := (prevTempo / 1_000_000.0) / float64(ppq)
			acc += float64(tick-prevTick) * secondsPerTick
		}
		tm.entries = append(tm.entries, tempoEntry{tick: tick, microsPerBeat: tempo, accSeconds: acc})
		prevTick = tick
		prevTempo = tempo
	}
	return tm
}

// NewSMPTETempoMap builds a constant-rate tempo map for an SMPTE-timed
// file, per spec §4.3: fps = |upper byte|, ticksPerFrame = lower byte,
// secondsPerTick = 1/(fps*ticksPerFrame).
func NewSMPTETempoMap(fps, ticksPerFrame int) *TempoMap {
	if fps <= 0 {
		fps = 30
	}
	if ticksPerFrame <= 0 {
		ticksPerFrame = 80
	}
	return &TempoMap{
		smpte:         true,
		secondsPerTick: 1.0 / (float64(fps) * float64(ticksPerFrame)),
	}
}

// NewProportionalTempoMap builds a fallback map for an SMPTE file whose
// reported total length is usable: secondsPerTick = totalSeconds /
// totalTicks. If totalTicks or totalSeconds is 0, falls back to 120 BPM
// at the given ppq (spec §4.3 / §9 open question #2).
func NewProportionalTempoMap(totalSeconds float64, totalTicks int64, ppq int64) *TempoMap {
	if totalTicks <= 0 || totalSeconds <= 0 {
		return NewTempoMap(ppq, nil)
	}
	return &TempoMap{
		smpte:         true,
		secondsPerTick: totalSeconds / float64(totalTicks),
	}
}

// TickToSeconds converts an absolute tick to seconds since the start of
// the file. It is monotonic non-decreasing in tick (spec §8 invariant).
func (tm *TempoMap) TickToSeconds(tick int64) float64 {
	if tm.smpte {
		return float64(tick) * tm.secondsPerTick
	}
	if len(tm.entries) == 0 {
		return 0
	}

	// Binary search for the last entry with tick <= target (O(log n)
	// lookup per spec §3).
	idx := sort.Search(len(tm.entries), func(i int) bool {
		return tm.entries[i].tick > tick
	}) - 1
	if idx < 0 {
		idx = 0
	}

	e := tm.entries[idx]
	secondsPerTick := (e.microsPerBeat / 1_000_000.0) / float64(tm.ppq)
	return e.accSeconds + float64(tick-e.tick)*secondsPerTick
}
