// Package playback implements C8, the Playback Service: the single
// entry point wiring the clock, MIDI parser, analysis pipeline,
// partitioner, key mapper, and scheduler into load/start/pause/resume/
// stop operations (spec §4.8). Grounded on
// player/fluidsynth.go's PlayMIDIWithDisplay orchestration, generalized
// from "parse -> generate -> play -> display" to "parse -> analyze ->
// partition -> map -> schedule -> dispatch".
package playback

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ako-systems/autoplayer/internal/analysis"
	"github.com/ako-systems/autoplayer/internal/clock"
	"github.com/ako-systems/autoplayer/internal/keydispatch"
	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
	"github.com/ako-systems/autoplayer/internal/partition"
	"github.com/ako-systems/autoplayer/internal/scheduler"
)

// Service wires every component into the operations a CLI, TUI, or
// HTTP command channel drives (spec §4.8).
type Service struct {
	mu sync.Mutex
	// running is set when a performance starts and cleared by its
	// OnComplete, covering the window before the worker reports Playing.
	running bool

	clock       clock.Clock
	dispatcher  *keydispatch.Dispatcher
	mapper      *keymap.Mapper
	partitioner *partition.TrackChannelPartitioner
	pipelineCfg analysis.PipelineConfig
	schedOpts   scheduler.Options
	callbacks   scheduler.Callbacks
	log         *logrus.Entry

	sched   *scheduler.Scheduler
	tempo   float64
	percent float64

	lastParse    *midiparse.ParseResult
	lastSections []partition.PartSection
}

// NewService builds a Service. emitter may be nil (NullEmitter). clk may
// be nil (a fresh clock.LocalClock).
func NewService(emitter keydispatch.Emitter, clk clock.Clock, log *logrus.Entry) *Service {
	if clk == nil {
		clk = clock.NewLocalClock()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		clock:       clk,
		dispatcher:  keydispatch.New(emitter),
		mapper:      keymap.NewMapper(keymap.Default21Key()),
		partitioner: partition.NewPartitioner(),
		pipelineCfg: analysis.DefaultPipelineConfig(),
		schedOpts:   scheduler.DefaultOptions(),
		tempo:       1.0,
		log:         log,
	}
}

// SetTempo sets the playback tempo multiplier applied to every
// subsequent Start call (spec §6 `playback.tempo_default`, range
// 0.25-3.0).
func (s *Service) SetTempo(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t < 0.25 {
		t = 0.25
	}
	if t > 3.0 {
		t = 3.0
	}
	s.tempo = t
}

// SetOptions replaces the scheduler options used by every subsequent
// Start call.
func (s *Service) SetOptions(opts scheduler.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedOpts = opts
}

// SetPipelineConfig replaces the analysis pipeline configuration applied
// to every subsequent Start call.
func (s *Service) SetPipelineConfig(cfg analysis.PipelineConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelineCfg = cfg
}

// SetCallbacks replaces the scheduler lifecycle callbacks.
func (s *Service) SetCallbacks(cb scheduler.Callbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
}

// SetClockProvider swaps the clock a future Start's scheduler will use
// (spec §9 "Clock interface with LocalClock/NetworkClock variants").
func (s *Service) SetClockProvider(clk clock.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clk
}

// SetKeyMap replaces the default key map.
func (s *Service) SetKeyMap(km *keymap.KeyMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapper.Default = km
}

// SetRoleKeyMap registers a role-specific key map that shadows the
// default for events carrying that role.
func (s *Service) SetRoleKeyMap(role keymap.Role, km *keymap.KeyMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapper.WithRoleMap(role, km)
}

// SetRoleOverride forces every note in a given partition section name to
// the given role, overriding per-event heuristics (spec §4.5).
func (s *Service) SetRoleOverride(sectionName string, role keymap.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitioner.RoleOverrides[sectionName] = role
}

// Load parses a MIDI file and partitions it, without starting playback.
// The result is cached so PlayParts and section introspection can reuse
// it without re-parsing.
func (s *Service) Load(path string) (*midiparse.ParseResult, []partition.PartSection, error) {
	pr, err := midiparse.Parse(path)
	if err != nil {
		return nil, nil, fmt.Errorf("playback: load %s: %w", path, err)
	}

	s.mu.Lock()
	sections := s.partitioner.Partition(pr.Events)
	s.lastParse = pr
	s.lastSections = sections
	s.mu.Unlock()

	s.log.WithField("path", path).WithField("event_count", len(pr.Events)).Info("loaded midi file")
	return pr, sections, nil
}

// StartFromPath loads path, runs the analysis pipeline over every
// parsed event, and starts playback.
func (s *Service) StartFromPath(path string) error {
	pr, _, err := s.Load(path)
	if err != nil {
		return err
	}
	return s.StartFromEvents(pr.Events)
}

// StartFromEvents runs the analysis pipeline and key mapper over events
// and starts scheduling them for playback. It blocks the scheduler
// worker in its own goroutine and returns immediately (spec §5
// "one scheduler worker goroutine per performance").
func (s *Service) StartFromEvents(events []midiparse.NoteEvent) error {
	s.mu.Lock()
	cfg := s.pipelineCfg
	opts := s.schedOpts
	cb := s.callbacks
	clk := s.clock
	s.mu.Unlock()

	result := analysis.Run(events, cfg)
	sections := s.partitioner.Partition(result.Events)

	s.mu.Lock()
	s.lastSections = sections
	s.mu.Unlock()

	return s.startSections(sections, clk, opts, cb, nil)
}

// PlayParts starts playback restricted to the named sections from the
// most recently loaded file. When includeRoles is non-empty, events
// whose resolved role isn't in that set are dropped from the merged
// stream (spec §4.8 "play_parts(parts, selected_names, include_roles?,
// role_overrides?)"; role_overrides is driven separately via
// SetRoleOverride before calling PlayParts).
func (s *Service) PlayParts(names []string, includeRoles ...keymap.Role) error {
	s.mu.Lock()
	all := s.lastSections
	clk := s.clock
	opts := s.schedOpts
	cb := s.callbacks
	s.mu.Unlock()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var selected []partition.PartSection
	for _, sec := range all {
		if wanted[sec.Name] {
			selected = append(selected, sec)
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("playback: no matching sections among %v", names)
	}

	var roleFilter map[keymap.Role]bool
	if len(includeRoles) > 0 {
		roleFilter = make(map[keymap.Role]bool, len(includeRoles))
		for _, r := range includeRoles {
			roleFilter[r] = true
		}
	}

	return s.startSections(selected, clk, opts, cb, roleFilter)
}

// startSections maps sections to dispatch events and hands them to a
// fresh Scheduler, run in its own goroutine. roleFilter may be nil
// (keep every role).
func (s *Service) startSections(sections []partition.PartSection, clk clock.Clock, opts scheduler.Options, cb scheduler.Callbacks, roleFilter map[keymap.Role]bool) error {
	dispatchEvents := mapSections(s.mapper, sections)
	if roleFilter != nil {
		dispatchEvents = filterByRole(dispatchEvents, roleFilter)
	}
	if len(dispatchEvents) == 0 {
		return fmt.Errorf("playback: no dispatchable events (empty key map, empty performance, or include_roles excluded everything)")
	}

	s.mu.Lock()
	if s.running || (s.sched != nil && s.sched.State() != scheduler.StateIdle) {
		s.mu.Unlock()
		return fmt.Errorf("playback: a performance is already in progress")
	}
	chordMap, _ := s.mapper.RoleMaps[keymap.RoleChord]
	if chordMap == nil {
		chordMap = s.mapper.Default
	}
	sched := scheduler.New(s.dispatcher, chordMap, clk, opts, s.log)
	s.sched = sched
	s.running = true
	s.percent = 0
	tempo := s.tempo
	s.mu.Unlock()

	go sched.Start(dispatchEvents, tempo, s.wrapCallbacks(cb))
	return nil
}

// wrapCallbacks shadows a caller's OnProgress/OnComplete with Service's
// own percent bookkeeping (so Progress() reflects the live run even when
// the caller supplied no callbacks of its own), then forwards to cb.
func (s *Service) wrapCallbacks(cb scheduler.Callbacks) scheduler.Callbacks {
	return scheduler.Callbacks{
		OnProgress: func(pct float64) {
			s.mu.Lock()
			s.percent = pct
			s.mu.Unlock()
			if cb.OnProgress != nil {
				cb.OnProgress(pct)
			}
		},
		OnComplete: func() {
			s.mu.Lock()
			s.percent = 100
			s.running = false
			s.mu.Unlock()
			if cb.OnComplete != nil {
				cb.OnComplete()
			}
		},
		OnError: cb.OnError,
	}
}

// mapSections maps each section through the mapper using its own
// role-resolution (heuristic or override), then merges and re-sorts the
// combined dispatch stream (spec §5 "releases strictly before presses
// at identical times").
func mapSections(mapper *keymap.Mapper, sections []partition.PartSection) []keymap.DispatchEvent {
	var out []keymap.DispatchEvent
	for i := range sections {
		sec := &sections[i]
		out = append(out, mapper.Map(sec.Notes, sec.RoleFor)...)
	}
	sortDispatchEvents(out)
	return out
}

// filterByRole drops dispatch events whose role isn't in roles. A
// note's press and release share the same Role, so filtering the
// already-merged stream keeps every surviving pair intact.
func filterByRole(events []keymap.DispatchEvent, roles map[keymap.Role]bool) []keymap.DispatchEvent {
	out := make([]keymap.DispatchEvent, 0, len(events))
	for _, e := range events {
		if roles[e.Role] {
			out = append(out, e)
		}
	}
	return out
}

func sortDispatchEvents(events []keymap.DispatchEvent) {
	// insertion sort is fine here: events are already mostly sorted
	// per-section, and this only needs to interleave a small number of
	// sections.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && lessDispatch(events[j], events[j-1]); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}

func lessDispatch(a, b keymap.DispatchEvent) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return dispatchKindRank(a.Kind) < dispatchKindRank(b.Kind)
}

func dispatchKindRank(k keymap.DispatchKind) int {
	if k == keymap.PressUp {
		return 0
	}
	return 1
}

// Pause pauses the in-progress performance, if any.
func (s *Service) Pause() {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched != nil {
		sched.Pause()
	}
}

// Resume resumes a paused performance, if any.
func (s *Service) Resume() {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched != nil {
		sched.Resume()
	}
}

// StopAll stops the in-progress performance and releases every held key.
func (s *Service) StopAll() {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched != nil {
		sched.Stop()
	}
}

// State reports the current scheduler state, or Idle if none has run.
func (s *Service) State() scheduler.State {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched == nil {
		return scheduler.StateIdle
	}
	return sched.State()
}

// Sections returns the most recently partitioned sections.
func (s *Service) Sections() []partition.PartSection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSections
}

// Progress reports the live run's completion percent and state string,
// satisfying internal/display's PlayerController interface structurally.
func (s *Service) Progress() (percent float64, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := scheduler.StateIdle
	if s.sched != nil {
		st = s.sched.State()
	}
	return s.percent, string(st)
}

// ActiveKeys returns the keys currently held down.
func (s *Service) ActiveKeys() []string {
	return s.dispatcher.ActiveKeys()
}

// TogglePause flips between Pause and Resume based on current state,
// satisfying internal/display's PlayerController interface.
func (s *Service) TogglePause() {
	switch s.State() {
	case scheduler.StatePlaying:
		s.Pause()
	case scheduler.StatePaused:
		s.Resume()
	}
}

// Stop is an alias for StopAll, satisfying internal/display's
// PlayerController interface (which names it Stop for symmetry with
// TogglePause).
func (s *Service) Stop() {
	s.StopAll()
}
