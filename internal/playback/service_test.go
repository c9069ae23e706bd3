package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ako-systems/autoplayer/internal/clock"
	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
	"github.com/ako-systems/autoplayer/internal/scheduler"
)

type recordingEmitter struct {
	mu    sync.Mutex
	downs []string
	ups   []string
}

func (r *recordingEmitter) KeyDown(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downs = append(r.downs, key)
}

func (r *recordingEmitter) KeyUp(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ups = append(r.ups, key)
}

func (r *recordingEmitter) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.downs...), append([]string(nil), r.ups...)
}

func TestStartFromEventsDispatchesAndCompletes(t *testing.T) {
	emitter := &recordingEmitter{}
	svc := NewService(emitter, clock.NewLocalClock(), nil)
	svc.SetTempo(1.0)

	done := make(chan struct{})
	svc.SetCallbacks(scheduler.Callbacks{OnComplete: func() { close(done) }})

	events := []midiparse.NoteEvent{
		{StartTime: 0, EndTime: 0.01, Note: 60, Channel: 0, Velocity: 100, Track: 0, Program: -1},
	}

	require.NoError(t, svc.StartFromEvents(events))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("performance never completed")
	}

	downs, ups := emitter.snapshot()
	assert.NotEmpty(t, downs)
	assert.NotEmpty(t, ups)
	assert.Equal(t, scheduler.StateIdle, svc.State())
}

func TestStartFromEventsRejectsConcurrentPerformance(t *testing.T) {
	svc := NewService(nil, clock.NewLocalClock(), nil)
	events := []midiparse.NoteEvent{
		{StartTime: 0.2, EndTime: 0.5, Note: 60, Channel: 0, Velocity: 100, Track: 0, Program: -1},
	}
	require.NoError(t, svc.StartFromEvents(events))
	err := svc.StartFromEvents(events)
	assert.Error(t, err)
	svc.StopAll()
	time.Sleep(50 * time.Millisecond)
}

func TestPlayPartsRejectsUnknownSection(t *testing.T) {
	svc := NewService(nil, clock.NewLocalClock(), nil)
	err := svc.PlayParts([]string{"does-not-exist"})
	assert.Error(t, err)
}

func TestPlayPartsIncludeRolesDropsOtherRoles(t *testing.T) {
	emitter := &recordingEmitter{}
	svc := NewService(emitter, clock.NewLocalClock(), nil)

	events := []midiparse.NoteEvent{
		{StartTime: 0, EndTime: 0.01, Note: 36, Channel: 0, Velocity: 100, Track: 0, Program: -1}, // -> Bass, key "z"
		{StartTime: 0, EndTime: 0.01, Note: 72, Channel: 0, Velocity: 100, Track: 0, Program: -1}, // -> Melody, key "1"
	}

	// StartFromEvents populates lastSections as a side effect; run and
	// drain it once so PlayParts has a section to restart against.
	firstDone := make(chan struct{})
	svc.SetCallbacks(scheduler.Callbacks{OnComplete: func() { close(firstDone) }})
	require.NoError(t, svc.StartFromEvents(events))
	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("priming performance never completed")
	}
	emitter.downs, emitter.ups = nil, nil

	var sectionName string
	for _, sec := range svc.Sections() {
		sectionName = sec.Name
	}
	require.NotEmpty(t, sectionName)

	done := make(chan struct{})
	svc.SetCallbacks(scheduler.Callbacks{OnComplete: func() { close(done) }})
	require.NoError(t, svc.PlayParts([]string{sectionName}, keymap.RoleBass))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("performance never completed")
	}

	downs, _ := emitter.snapshot()
	assert.Contains(t, downs, "z")
	assert.NotContains(t, downs, "1")
}

func TestSetRoleOverrideAffectsKeyMap(t *testing.T) {
	bassMap := keymap.Default21Key()
	bassMap.Set("H1", "BASSKEY") // note 72 resolves to register H, degree 1

	emitter := &recordingEmitter{}
	svc := NewService(emitter, clock.NewLocalClock(), nil)
	svc.SetRoleKeyMap(keymap.RoleBass, bassMap)
	// note 72 would default to Melody under the heuristic; force Bass via
	// an explicit section override so the swapped keymap actually fires.
	svc.SetRoleOverride("track0_ch0_prog-1_unnamed", keymap.RoleBass)

	done := make(chan struct{})
	svc.SetCallbacks(scheduler.Callbacks{OnComplete: func() { close(done) }})

	events := []midiparse.NoteEvent{
		{StartTime: 0, EndTime: 0.01, Note: 72, Channel: 0, Velocity: 100, Track: 0, Program: -1},
	}
	require.NoError(t, svc.StartFromEvents(events))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("performance never completed")
	}

	downs, _ := emitter.snapshot()
	assert.Contains(t, downs, "BASSKEY")
}
