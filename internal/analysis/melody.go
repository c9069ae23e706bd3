package analysis

import (
	"math"
	"sort"

	"github.com/ako-systems/autoplayer/internal/midiparse"
)

// MelodyMode selects the single-line melody extraction algorithm
// (spec §4.4 "Melody extraction").
type MelodyMode string

const (
	MelodyEntropy    MelodyMode = "entropy"
	MelodyBeat       MelodyMode = "beat"
	MelodyRepetition MelodyMode = "repetition"
	MelodyHybrid     MelodyMode = "hybrid"
)

// CollapseKeep selects which note within a monophonic-collapse cluster
// survives (spec §4.4 "Monophonic collapse").
type CollapseKeep string

const (
	KeepHighest CollapseKeep = "highest"
	KeepLoudest CollapseKeep = "loudest"
	KeepLongest CollapseKeep = "longest"
)

// MelodyConfig parameterizes melody extraction.
type MelodyConfig struct {
	Mode              MelodyMode
	Strength          float64 // 0..1, drives tol/threshold/window
	PreferredChannel  *uint8  // nil = no preference
	MinScore          *float64
	EntropyWeight     float64
	RepetitionPenalty float64
	Keep              CollapseKeep
}

// DefaultMelodyConfig returns sane defaults.
func DefaultMelodyConfig() MelodyConfig {
	return MelodyConfig{
		Mode:              MelodyHybrid,
		Strength:          0.5,
		EntropyWeight:     1.0,
		RepetitionPenalty: 1.0,
		Keep:              KeepHighest,
	}
}

// ExtractMelody implements spec §4.4's melody-extraction stage: channel
// selection, mode-specific filtering, then monophonic collapse.
func ExtractMelody(events []midiparse.NoteEvent, cfg MelodyConfig) []midiparse.NoteEvent {
	channel, ok := selectChannel(events, cfg)
	if !ok {
		return nil
	}

	var channelNotes []midiparse.NoteEvent
	for _, e := range events {
		if e.Channel == channel {
			channelNotes = append(channelNotes, e)
		}
	}
	sort.SliceStable(channelNotes, func(i, j int) bool { return channelNotes[i].StartTime < channelNotes[j].StartTime })

	var filtered []midiparse.NoteEvent
	switch cfg.Mode {
	case MelodyEntropy:
		filtered = channelNotes
	case MelodyBeat:
		filtered = filterByBeat(channelNotes, cfg.Strength)
	case MelodyRepetition:
		filtered = filterByRepetition(channelNotes, cfg.Strength, cfg.RepetitionPenalty)
	case MelodyHybrid:
		filtered = filterByRepetition(channelNotes, cfg.Strength, cfg.RepetitionPenalty)
		filtered = filterByBeat(filtered, cfg.Strength)
	default:
		filtered = channelNotes
	}

	if cfg.Strength > 0 {
		filtered = monophonicCollapse(filtered, cfg.Strength, cfg.Keep)
	}
	return filtered
}

// channelScore computes spec §4.4's channel score:
//
//	score = count(pitch in [60,84]) - entropy_weight * H(IOI histogram 50ms)
func channelScore(notes []midiparse.NoteEvent, entropyWeight float64) float64 {
	inRange := 0
	for _, n := range notes {
		if n.Note >= 60 && n.Note <= 84 {
			inRange++
		}
	}
	return float64(inRange) - entropyWeight*iOIEntropy(notes, 50.0)
}

// selectChannel picks cfg.PreferredChannel if it has notes scoring at
// least cfg.MinScore, and picks no channel if its notes score lower; only
// when the preferred channel is unset or has no notes does it pick the
// max-scoring channel (spec §4.4 "Channel scoring").
func selectChannel(events []midiparse.NoteEvent, cfg MelodyConfig) (uint8, bool) {
	byChannel := make(map[uint8][]midiparse.NoteEvent)
	for _, e := range events {
		byChannel[e.Channel] = append(byChannel[e.Channel], e)
	}
	if len(byChannel) == 0 {
		return 0, false
	}

	entropyWeight := cfg.EntropyWeight
	if entropyWeight == 0 {
		entropyWeight = 1.0
	}

	if cfg.PreferredChannel != nil {
		if notes, ok := byChannel[*cfg.PreferredChannel]; ok && len(notes) > 0 {
			score := channelScore(notes, entropyWeight)
			if cfg.MinScore == nil || score >= *cfg.MinScore {
				return *cfg.PreferredChannel, true
			}
			return 0, false
		}
	}

	var bestChan uint8
	bestScore := math.Inf(-1)
	first := true
	channels := make([]uint8, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	for _, ch := range channels {
		score := channelScore(byChannel[ch], entropyWeight)
		if first || score > bestScore {
			bestScore = score
			bestChan = ch
			first = false
		}
	}

	if cfg.MinScore != nil && bestScore < *cfg.MinScore {
		return 0, false
	}
	return bestChan, true
}

// iOIEntropy computes the Shannon entropy (base 2) of the inter-onset
// interval histogram, binned at binMs milliseconds (spec §4.4 "IOI").
func iOIEntropy(notes []midiparse.NoteEvent, binMs float64) float64 {
	if len(notes) < 2 {
		return 0
	}
	sorted := append([]midiparse.NoteEvent(nil), notes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	hist := make(map[int64]int)
	for i := 1; i < len(sorted); i++ {
		ioiMs := (sorted[i].StartTime - sorted[i-1].StartTime) * 1000.0
		bin := int64(ioiMs / binMs)
		hist[bin]++
	}

	total := float64(len(sorted) - 1)
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, count := range hist {
		p := float64(count) / total
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

// dominantIOIBinMs returns the center (ms) of the most common 20ms-binned
// inter-onset interval, per spec §4.4's "beat" mode.
func dominantIOIBinMs(notes []midiparse.NoteEvent) float64 {
	const binMs = 20.0
	if len(notes) < 2 {
		return 0
	}
	hist := make(map[int64]int)
	for i := 1; i < len(notes); i++ {
		ioiMs := (notes[i].StartTime - notes[i-1].StartTime) * 1000.0
		bin := int64(ioiMs / binMs)
		hist[bin]++
	}
	var bestBin int64
	bestCount := -1
	bins := make([]int64, 0, len(hist))
	for b := range hist {
		bins = append(bins, b)
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })
	for _, b := range bins {
		if hist[b] > bestCount {
			bestCount = hist[b]
			bestBin = b
		}
	}
	return float64(bestBin)*binMs + binMs/2.0
}

// filterByBeat implements spec §4.4's "beat" mode: keep the first note,
// then accept subsequent notes only if their IOI is within tol*period of
// the dominant IOI. If more than 75% are rejected, relax tol by x1.5 once.
func filterByBeat(notes []midiparse.NoteEvent, strength float64) []midiparse.NoteEvent {
	if len(notes) == 0 {
		return notes
	}
	period := dominantIOIBinMs(notes)
	if period <= 0 {
		return notes
	}
	tol := 0.35 - 0.23*strength

	run := func(tol float64) []midiparse.NoteEvent {
		kept := []midiparse.NoteEvent{notes[0]}
		lastTime := notes[0].StartTime
		for i := 1; i < len(notes); i++ {
			ioiMs := (notes[i].StartTime - lastTime) * 1000.0
			if math.Abs(ioiMs-period) <= tol*period {
				kept = append(kept, notes[i])
				lastTime = notes[i].StartTime
			}
		}
		return kept
	}

	kept := run(tol)
	if float64(len(kept)) < 0.25*float64(len(notes)) {
		kept = run(tol * 1.5)
	}
	return kept
}

// filterByRepetition implements spec §4.4's "repetition" mode: keep
// notes whose repetition-adjusted score exceeds a strength-derived
// threshold. If fewer than 8 survive, relax the threshold by x0.8.
func filterByRepetition(notes []midiparse.NoteEvent, strength, penalty float64) []midiparse.NoteEvent {
	if len(notes) == 0 {
		return notes
	}
	freq := make(map[uint8]float64)
	for _, n := range notes {
		freq[n.Note]++
	}
	n := float64(len(notes))
	for p := range freq {
		freq[p] /= n
	}

	run := func(threshold float64) []midiparse.NoteEvent {
		var kept []midiparse.NoteEvent
		for _, note := range notes {
			if 1-penalty*freq[note.Note] > threshold {
				kept = append(kept, note)
			}
		}
		return kept
	}

	threshold := 0.05 + 0.20*strength
	kept := run(threshold)
	if len(kept) < 8 {
		kept = run(threshold * 0.8)
	}
	return kept
}

// monophonicCollapse clusters notes whose starts fall within a strength-
// derived window and keeps one representative per cluster, then merges
// adjacent same-pitch kept notes whose gap is within the window
// (spec §4.4 "Monophonic collapse").
func monophonicCollapse(notes []midiparse.NoteEvent, strength float64, keep CollapseKeep) []midiparse.NoteEvent {
	if len(notes) == 0 {
		return notes
	}
	window := 0.06 + 0.04*(1-strength)

	sorted := append([]midiparse.NoteEvent(nil), notes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	var clusters [][]midiparse.NoteEvent
	clusterStart := sorted[0].StartTime
	current := []midiparse.NoteEvent{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].StartTime-clusterStart <= window {
			current = append(current, sorted[i])
		} else {
			clusters = append(clusters, current)
			current = []midiparse.NoteEvent{sorted[i]}
			clusterStart = sorted[i].StartTime
		}
	}
	clusters = append(clusters, current)

	kept := make([]midiparse.NoteEvent, 0, len(clusters))
	for _, cluster := range clusters {
		kept = append(kept, pickRepresentative(cluster, keep))
	}

	// merge adjacent kept notes of equal pitch whose gap <= window
	var merged []midiparse.NoteEvent
	for _, note := range kept {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.Note == note.Note && note.StartTime-last.EndTime <= window {
				if note.EndTime > last.EndTime {
					last.EndTime = note.EndTime
				}
				continue
			}
		}
		merged = append(merged, note)
	}
	return merged
}

func pickRepresentative(cluster []midiparse.NoteEvent, keep CollapseKeep) midiparse.NoteEvent {
	best := cluster[0]
	for _, n := range cluster[1:] {
		switch keep {
		case KeepLoudest:
			if n.Velocity > best.Velocity {
				best = n
			}
		case KeepLongest:
			if (n.EndTime - n.StartTime) > (best.EndTime - best.StartTime) {
				best = n
			}
		default: // KeepHighest
			if n.Note > best.Note {
				best = n
			}
		}
	}
	return best
}
