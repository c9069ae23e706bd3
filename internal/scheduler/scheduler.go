package scheduler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ako-systems/autoplayer/internal/keydispatch"
	"github.com/ako-systems/autoplayer/internal/keymap"
)

// State is the scheduler's playback state machine (spec §4.7 "State
// machine"): Idle -> Playing -> Paused -> Playing, Playing/Paused -> Idle.
type State string

const (
	StateIdle    State = "Idle"
	StatePlaying State = "Playing"
	StatePaused  State = "Paused"
)

// MonotonicClock is the minimal clock surface the scheduler needs; C1's
// Clock (local or network) satisfies it.
type MonotonicClock interface {
	Monotonic() float64
}

// Callbacks are delivered at scheduler lifecycle points.
type Callbacks struct {
	OnProgress func(percent float64)
	OnComplete func()
	OnError    func(err error)
}

// Scheduler advances a sorted DispatchEvent list at a configurable
// tempo, emitting refcounted key presses through a keydispatch.Dispatcher
// (spec §4.7).
type Scheduler struct {
	dispatcher *keydispatch.Dispatcher
	chordMap   *keymap.KeyMap
	clock      MonotonicClock
	log        *logrus.Entry
	opts       Options

	mu          sync.Mutex
	state       State
	stopCh      chan struct{}
	stopOnce    sync.Once
	resumeCh    chan struct{}
	pausedAt    float64
	pausedTotal float64

	activeCounts map[string]int
	lastPress    map[string]float64

	chordPitchClassCounts map[int]int
	currentChord          string
}

// New builds a Scheduler. chordMap may be nil if EnableChordKeys is false.
func New(dispatcher *keydispatch.Dispatcher, chordMap *keymap.KeyMap, clock MonotonicClock, opts Options, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		dispatcher:            dispatcher,
		chordMap:              chordMap,
		clock:                 clock,
		log:                   log,
		opts:                  opts,
		state:                 StateIdle,
		activeCounts:          make(map[string]int),
		lastPress:             make(map[string]float64),
		chordPitchClassCounts: make(map[int]int),
	}
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins playing events at tempoMultiplier t, blocking until the
// stream completes or is stopped.
// Callers run it in a goroutine (spec §5 "Scheduler worker" thread).
func (s *Scheduler) Start(events []keymap.DispatchEvent, t float64, cb Callbacks) {
	if t <= 0 {
		t = 1.0
	}
	s.mu.Lock()
	s.state = StatePlaying
	s.stopCh = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.resumeCh = make(chan struct{}, 1)
	s.activeCounts = make(map[string]int)
	s.lastPress = make(map[string]float64)
	s.chordPitchClassCounts = make(map[int]int)
	s.currentChord = ""
	s.pausedTotal = 0
	s.mu.Unlock()

	s.log.WithField("event_count", len(events)).Info("scheduler starting playback")

	totalTime := 0.0
	for _, e := range events {
		if e.Time > totalTime {
			totalTime = e.Time
		}
	}

	startMono := s.clock.Monotonic()
	i := 0
	for i < len(events) {
		if s.isStopped() {
			break
		}
		s.waitWhilePaused()
		if s.isStopped() {
			break
		}

		target := events[i].Time/t - s.opts.SendAheadMs/1000.0
		if aborted := s.hybridWait(startMono, target); aborted {
			break
		}

		j := i
		baseTime := events[i].Time / t
		epsilon := s.opts.EpsilonMs / 1000.0
		for j < len(events) && (events[j].Time/t)-baseTime <= epsilon {
			j++
		}
		batch := events[i:j]

		s.releasePhase(batch)
		s.pressPhase(batch)

		if cb.OnProgress != nil && totalTime > 0 {
			pct := 100.0 * s.elapsedSince(startMono) / (totalTime / t)
			if pct > 100 {
				pct = 100
			}
			cb.OnProgress(pct)
		}

		if s.opts.PostActionSleepMs > 0 {
			time.Sleep(time.Duration(s.opts.PostActionSleepMs * float64(time.Millisecond)))
		}

		i = j
	}

	s.releaseAllHeld()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	s.log.Info("scheduler stopped, all keys released")

	if cb.OnComplete != nil {
		cb.OnComplete()
	}
}

// elapsedSince returns monotonic time since startMono, excluding any
// time spent paused (mirrors the teacher's pausedAt/pausedTotal pattern).
func (s *Scheduler) elapsedSince(startMono float64) float64 {
	s.mu.Lock()
	pausedTotal := s.pausedTotal
	s.mu.Unlock()
	return s.clock.Monotonic() - startMono - pausedTotal
}

func (s *Scheduler) isStopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// sleepInterruptible sleeps for d or until stopCh closes, whichever comes
// first, so a long wait never delays Stop() (spec §5 "the worker must
// observe the flag at every wait branch").
func (s *Scheduler) sleepInterruptible(d time.Duration) (stopped bool) {
	if d <= 0 {
		return s.isStopped()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.stopCh:
		return true
	case <-timer.C:
		return false
	}
}

// waitWhilePaused blocks the worker while Paused, observing stop at
// every iteration (spec §5 "scheduler pause-spin (sleep 10ms while
// paused)").
func (s *Scheduler) waitWhilePaused() {
	for {
		s.mu.Lock()
		paused := s.state == StatePaused
		s.mu.Unlock()
		if !paused {
			return
		}
		select {
		case <-s.stopCh:
			return
		case <-s.resumeCh:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// hybridWait implements spec §4.7 step 2: sleep-then-spin until
// monotonic()-startMono >= target, aborting early on pause/stop. A pause
// mid-wait blocks here (via waitWhilePaused) rather than falling through
// to batch processing early.
func (s *Scheduler) hybridWait(startMono, target float64) (aborted bool) {
	for {
		if s.isStopped() {
			return true
		}
		s.mu.Lock()
		paused := s.state == StatePaused
		s.mu.Unlock()
		if paused {
			s.waitWhilePaused()
			continue
		}

		remaining := target - s.elapsedSince(startMono)
		if remaining <= 0 {
			return false
		}

		switch {
		case remaining*1000 > 20:
			if stopped := s.sleepInterruptible(time.Duration((remaining - 0.010) * float64(time.Second))); stopped {
				return true
			}
		case remaining*1000 > s.opts.SpinThresholdMs:
			if stopped := s.sleepInterruptible(500 * time.Microsecond); stopped {
				return true
			}
		default:
			// busy-wait
		}
	}
}

// releasePhase implements spec §4.7 step 4-5: decrement counts for
// PressUp events, release keys whose count drops to 0, and update
// chord pitch-class bookkeeping.
func (s *Scheduler) releasePhase(batch []keymap.DispatchEvent) {
	var releaseOnce []string
	for _, e := range batch {
		if e.Kind != keymap.PressUp {
			continue
		}
		s.activeCounts[e.Key]--
		if s.activeCounts[e.Key] <= 0 {
			delete(s.activeCounts, e.Key)
			releaseOnce = append(releaseOnce, e.Key)
		}
		if s.opts.EnableChordKeys {
			pc := int(e.Note) % 12
			s.chordPitchClassCounts[pc]--
			if s.chordPitchClassCounts[pc] <= 0 {
				delete(s.chordPitchClassCounts, pc)
			}
		}
	}
	if len(releaseOnce) > 0 {
		s.dispatcher.Release(releaseOnce...)
	}

	s.maybeReleaseChord()
}

// maybeReleaseChord schedules (or performs) the chord key's release once
// every defining pitch class has dropped to zero, respecting
// chord_min_sustain_ms (spec §4.7 step 4).
func (s *Scheduler) maybeReleaseChord() {
	if s.currentChord == "" {
		return
	}
	pattern := patternFor(s.currentChord)
	if pattern == nil {
		return
	}
	for pc := range pattern {
		if s.chordPitchClassCounts[pc] > 0 {
			return
		}
	}

	now := s.clock.Monotonic()
	key, ok := s.chordKey(s.currentChord)
	if !ok {
		s.currentChord = ""
		return
	}
	if last, ok := s.lastPress[key]; ok && now-last < s.opts.ChordMinSustainMs/1000.0 {
		return // chord_min_sustain_ms not yet elapsed; re-check next batch
	}
	delete(s.activeCounts, key)
	s.dispatcher.Release(key)
	s.currentChord = ""
}

func patternFor(name string) map[int]bool {
	for _, p := range chordPatterns {
		if p.Name == name {
			return p.Classes
		}
	}
	return nil
}

// chordRootFor returns the chord's deterministic root pitch class (-1 if
// name isn't recognized), used for DropChordRootMelodyKey instead of an
// arbitrary member picked by map iteration order.
func chordRootFor(name string) int {
	for _, p := range chordPatterns {
		if p.Name == name {
			return p.Root
		}
	}
	return -1
}

func (s *Scheduler) chordKey(name string) (string, bool) {
	if s.chordMap == nil {
		return "", false
	}
	return s.chordMap.Get(name)
}

// pressPhase implements spec §4.7 steps 6-8: chord detection over the
// batch's press-down pitch classes, then refcounted press with retrigger
// gating, then chord-key press.
func (s *Scheduler) pressPhase(batch []keymap.DispatchEvent) {
	var downNotes []uint8
	var downs []keymap.DispatchEvent
	for _, e := range batch {
		if e.Kind == keymap.PressDown {
			downNotes = append(downNotes, e.Note)
			downs = append(downs, e)
			if s.opts.EnableChordKeys {
				s.chordPitchClassCounts[int(e.Note)%12]++
			}
		}
	}

	var chordName string
	var chordDetected bool
	if s.opts.EnableChordKeys && len(downNotes) > 0 {
		chordName, chordDetected = DetectChord(classesOf(downNotes), s.opts.ChordMode)
	}

	rootPC := -1
	if chordDetected {
		rootPC = chordRootFor(chordName)
	}

	now := s.clock.Monotonic()
	for _, e := range downs {
		if s.opts.DropChordRootMelodyKey && chordDetected && int(e.Note)%12 == rootPC {
			continue
		}
		s.pressOne(e.Key, now)
	}

	if chordDetected {
		s.log.WithField("chord", chordName).Debug("chord detected")
		s.currentChord = chordName
		if key, ok := s.chordKey(chordName); ok {
			s.pressOne(key, now)
		}
	}
}

// pressOne implements spec §4.7 step 7's refcounted press/retrigger
// discipline for a single key.
func (s *Scheduler) pressOne(key string, now float64) {
	if s.activeCounts[key] == 0 {
		s.dispatcher.Press(key)
		s.lastPress[key] = now
	} else if s.opts.AllowRetrigger {
		if last, ok := s.lastPress[key]; !ok || now-last >= s.opts.RetriggerMinGapMs/1000.0 {
			s.dispatcher.Release(key)
			s.dispatcher.Press(key)
			s.lastPress[key] = now
		}
	}
	s.activeCounts[key]++
}

func (s *Scheduler) releaseAllHeld() {
	var keys []string
	for k, count := range s.activeCounts {
		if count > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		s.dispatcher.Release(keys...)
	}
	s.activeCounts = make(map[string]int)
}

// Pause transitions Playing -> Paused; a no-op outside Playing.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePlaying {
		s.state = StatePaused
		s.pausedAt = s.clock.Monotonic()
	}
}

// Resume transitions Paused -> Playing; a no-op outside Paused. The
// paused interval is folded into pausedTotal so the scheduler resumes
// from where it left off rather than fast-forwarding through the pause
// (mirrors the teacher's pausedAt/pausedTotal bookkeeping).
func (s *Scheduler) Resume() {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	s.pausedTotal += s.clock.Monotonic() - s.pausedAt
	s.state = StatePlaying
	s.mu.Unlock()
	select {
	case s.resumeCh <- struct{}{}:
	default:
	}
}

// Stop is idempotent: it sets is_playing=false and the worker observes
// the flag at every wait branch and batch boundary (spec §5
// "Cancellation semantics").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	ch := s.stopCh
	s.mu.Unlock()
	if ch == nil {
		return
	}
	s.stopOnce.Do(func() { close(ch) })
}
