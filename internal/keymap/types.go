// Package keymap implements C6 of the spec: mapping analyzed note events
// to keysym slots, with register/degree selection, a fallback cascade,
// and role-specific keymap shadowing.
package keymap

// DispatchKind distinguishes a key-down from a key-up dispatch event.
type DispatchKind string

const (
	PressDown DispatchKind = "PressDown"
	PressUp   DispatchKind = "PressUp"
)

// Role classifies a dispatch event's source part, used to pick a
// role-specific keymap and for chord/melody bookkeeping downstream.
type Role string

const (
	RoleMelody Role = "Melody"
	RoleBass   Role = "Bass"
	RoleDrums  Role = "Drums"
	RoleChord  Role = "Chord"
)

// DispatchEvent is the key-mapper's output: a single press or release
// at a point in time, annotated with enough context for the scheduler
// to do chord detection and refcounted key emission.
type DispatchEvent struct {
	Time    float64
	Kind    DispatchKind
	Key     string
	Note    uint8
	Channel uint8
	Role    Role
}
