// Package scheduler implements C7: advancing a sorted DispatchEvent
// list against a monotonic clock, batching simultaneous events,
// refcounted press/release, retrigger gating, and chord accompaniment.
package scheduler

// ChordMode selects chord-recognition strictness (spec §4.7).
type ChordMode string

const (
	ChordTriad7 ChordMode = "triad7"
	ChordTriad  ChordMode = "triad"
	ChordGreedy ChordMode = "greedy"
)

// Options carries every configurable scheduler parameter, with spec
// §4.7's defaults.
type Options struct {
	EpsilonMs         float64
	SendAheadMs       float64
	SpinThresholdMs   float64
	PostActionSleepMs float64
	AllowRetrigger    bool
	RetriggerMinGapMs float64
	EnableChordKeys   bool
	ChordMode         ChordMode
	ChordMinSustainMs float64
	// DropChordRootMelodyKey, when set, skips the melody-key press for a
	// chord's root note once the chord itself is pressed (spec §4.7 step 8
	// "Optionally (flag), drop the root pitch's melody key").
	DropChordRootMelodyKey bool
}

// DefaultOptions returns spec §4.7's default parameter table.
func DefaultOptions() Options {
	return Options{
		EpsilonMs:         6,
		SendAheadMs:       2,
		SpinThresholdMs:   1,
		PostActionSleepMs: 0,
		AllowRetrigger:    true,
		RetriggerMinGapMs: 40,
		EnableChordKeys:   true,
		ChordMode:         ChordTriad7,
		ChordMinSustainMs: 120,
	}
}
