package clock

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ClockState mirrors spec §3's ClockState data model.
type ClockState struct {
	LastOffsetSeconds float64
	LastSysDriftMs    float64
	LastSyncOK        bool
	LastSyncMonotonic float64
	LastRTTSeconds    float64
}

// NetworkClock couples a monotonic clock to SNTP-estimated wall time and
// continuously re-estimates the offset on a background goroutine
// (spec §4.1 "Background resync").
type NetworkClock struct {
	local  *LocalClock
	client *SNTPClient
	log    *logrus.Entry

	resyncInterval   time.Duration
	adjustThreshold  time.Duration
	includeDelta     bool

	mu    sync.Mutex
	state ClockState

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	schedMu   sync.Mutex
	schedules map[Handle]*liveSchedule
}

// liveSchedule tracks an armed ScheduleRecord so background resync can
// recompute and, if needed, cancel-and-rearm it.
type liveSchedule struct {
	record   *ScheduleRecord
	cb       func()
	handle   Handle
}

// NetworkClockConfig mirrors the spec §6 `ntp.*` config keys.
type NetworkClockConfig struct {
	Servers             []string
	Timeout             time.Duration
	MaxTries            int
	ResyncInterval      time.Duration
	AdjustThresholdMs   float64
	IncludeDelta        bool
}

// DefaultNetworkClockConfig returns the spec's documented defaults.
func DefaultNetworkClockConfig() NetworkClockConfig {
	return NetworkClockConfig{
		Servers:           []string{"pool.ntp.org"},
		Timeout:           1500 * time.Millisecond,
		MaxTries:          3,
		ResyncInterval:    time.Second,
		AdjustThresholdMs: 5.0,
		IncludeDelta:      true,
	}
}

// NewNetworkClock constructs a NetworkClock. Callers must call Start to
// begin background resync and Stop to tear it down.
func NewNetworkClock(cfg NetworkClockConfig, log *logrus.Entry) *NetworkClock {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	interval := cfg.ResyncInterval
	if interval < 200*time.Millisecond {
		interval = 200 * time.Millisecond
	}
	if interval > 10*time.Second {
		interval = 10 * time.Second
	}

	return &NetworkClock{
		local:           NewLocalClock(),
		client:          &SNTPClient{Servers: cfg.Servers, Timeout: cfg.Timeout, MaxTries: cfg.MaxTries},
		log:             log,
		resyncInterval:  interval,
		adjustThreshold: time.Duration(cfg.AdjustThresholdMs * float64(time.Millisecond)),
		includeDelta:    cfg.IncludeDelta,
		stopCh:          make(chan struct{}),
		schedules:       make(map[Handle]*liveSchedule),
	}
}

// Monotonic exposes the underlying process monotonic clock.
func (n *NetworkClock) Monotonic() float64 {
	return n.local.Monotonic()
}

// Now returns monotonic() + last_offset when a sync has succeeded,
// otherwise falls back to the local clock's wall-clock unix time.
func (n *NetworkClock) Now() float64 {
	n.mu.Lock()
	st := n.state
	n.mu.Unlock()

	if st.LastSyncOK {
		return n.local.Monotonic() + st.LastOffsetSeconds
	}
	return n.local.Now()
}

// State returns a snapshot of ClockState.
func (n *NetworkClock) State() ClockState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SyncNow performs a single blocking SNTP exchange (spec: "sync_now()
// blocks the calling task on socket I/O up to the cumulative timeout").
func (n *NetworkClock) SyncNow() error {
	res, err := n.client.Sync(n.local.Monotonic)
	if err != nil {
		n.mu.Lock()
		n.state.LastSyncOK = false
		n.mu.Unlock()
		n.log.WithError(err).Warn("sntp sync failed, falling back to local clock")
		return err
	}

	n.mu.Lock()
	n.state = ClockState{
		LastOffsetSeconds: res.Offset,
		LastSysDriftMs:    res.DriftMs,
		LastSyncOK:        true,
		LastSyncMonotonic: res.Mono,
		LastRTTSeconds:    res.RTT,
	}
	n.mu.Unlock()

	n.log.WithFields(logrus.Fields{
		"server":    res.Server,
		"offset_s":  res.Offset,
		"drift_ms":  res.DriftMs,
		"rtt_s":     res.RTT,
	}).Info("sntp sync succeeded")

	n.rearmAll()
	return nil
}

// Start launches the background resync goroutine (spec §4.1, §5).
func (n *NetworkClock) Start() {
	n.wg.Add(1)
	go n.resyncLoop()
}

// Stop halts the background resync goroutine. Idempotent.
func (n *NetworkClock) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
}

func (n *NetworkClock) resyncLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			_ = n.SyncNow()
		}
	}
}

// ScheduleAt arms target (unix seconds) behind a ScheduleRecord so that
// background resync can recompute and re-arm it on drift (spec §4.1/§3).
// Satisfies clock.Clock; equivalent to ScheduleAtManual with no manual
// compensation.
func (n *NetworkClock) ScheduleAt(targetUnix float64, cb func()) (Handle, error) {
	return n.arm(targetUnix, 0, cb)
}

// ScheduleAtManual arms like ScheduleAt but also records an explicit
// manual compensation (spec §3 ScheduleRecord.manual_compensation_ms),
// so a caller-supplied latency correction survives background re-arms
// instead of being folded invisibly into the target.
func (n *NetworkClock) ScheduleAtManual(targetUnix, manualCompensationMs float64, cb func()) (Handle, error) {
	return n.arm(targetUnix, manualCompensationMs, cb)
}

// Cancel cancels a scheduled fire. Idempotent; returns false if already
// fired or unknown (spec §5 "cancel_schedule(id) is idempotent").
func (n *NetworkClock) Cancel(h Handle) bool {
	n.schedMu.Lock()
	ls, ok := n.schedules[h]
	delete(n.schedules, h)
	n.schedMu.Unlock()
	if ok {
		ls.record.Cancelled = true
	}
	return n.local.Cancel(h) || ok
}

// arm schedules cb at targetUnix plus any manual compensation and backs
// it with a fully populated ScheduleRecord. BaseUnixSeconds is derived
// so that recomputeTarget reproduces that fire time exactly using the
// adjustment known right now (auto latency from the last sync's RTT,
// ntp_delta from the last sync's drift) with the manual compensation
// added on top — so a later resync's rearmAll sees only the real change
// in those estimates, not a bogus multi-year drift from an unset base
// (spec §3 ScheduleRecord, §4.1 background resync).
func (n *NetworkClock) arm(targetUnix, manualCompensationMs float64, cb func()) (Handle, error) {
	scheduleUnix := targetUnix + manualCompensationMs/1000.0
	delay := scheduleUnix - n.Now()
	if delay < 0 {
		return "", ErrSchedulePast
	}

	st := n.State()
	autoLatencyMs := st.LastRTTSeconds * 1000.0
	driftSeconds := st.LastSysDriftMs / 1000.0
	adjustMs := autoLatencyMs
	if n.includeDelta {
		adjustMs += driftSeconds * 1000.0
	}

	record := &ScheduleRecord{
		BaseUnixSeconds:      targetUnix - adjustMs/1000.0,
		ScheduleUnixSeconds:  scheduleUnix,
		AutoLatencyMs:        autoLatencyMs,
		ManualCompensationMs: manualCompensationMs,
	}

	h, err := n.armRecord(record, cb)
	if err != nil {
		return "", err
	}
	return h, nil
}

// armRecord arms the local timer for record.ScheduleUnixSeconds and
// tracks it as a liveSchedule.
func (n *NetworkClock) armRecord(record *ScheduleRecord, cb func()) (Handle, error) {
	// h is captured by reference in the fire closure below; it is set
	// right after local.ScheduleAt returns, before the timer can possibly
	// fire (the timer's delay was just confirmed > 0 by the caller).
	var h Handle
	// The local timer runs on the local clock's time base, so convert the
	// NetworkClock target by its remaining delay.
	localTarget := n.local.Now() + (record.ScheduleUnixSeconds - n.Now())
	handle, err := n.local.ScheduleAt(localTarget, func() {
		n.schedMu.Lock()
		delete(n.schedules, h)
		n.schedMu.Unlock()
		record.Fired = true
		cb()
	})
	if err != nil {
		return "", err
	}
	h = handle
	record.Handle = h
	record.ID = string(h)

	n.schedMu.Lock()
	n.schedules[h] = &liveSchedule{
		record: record,
		cb:     cb,
		handle: h,
	}
	n.schedMu.Unlock()

	return h, nil
}

// rearmAll recomputes every live schedule's target after a successful
// resync; any schedule whose target drifts by more than adjustThreshold
// is cancelled and re-armed (spec §4.1 "Background resync"). A schedule
// within 50ms of now fires immediately rather than being rescheduled.
func (n *NetworkClock) rearmAll() {
	n.schedMu.Lock()
	live := make([]*liveSchedule, 0, len(n.schedules))
	for _, ls := range n.schedules {
		live = append(live, ls)
	}
	n.schedMu.Unlock()

	st := n.State()
	driftSeconds := st.LastSysDriftMs / 1000.0
	autoLatencyMs := st.LastRTTSeconds * 1000.0
	for _, ls := range live {
		newTarget := ls.record.recomputeTarget(n.includeDelta, autoLatencyMs, driftSeconds)
		drift := newTarget - ls.record.ScheduleUnixSeconds
		if drift < 0 {
			drift = -drift
		}
		if drift*1000.0 <= float64(n.adjustThreshold/time.Millisecond) {
			continue
		}

		n.Cancel(ls.handle)
		ls.record.AutoLatencyMs = autoLatencyMs

		if newTarget-n.Now() <= 0.050 {
			ls.record.Fired = true
			ls.cb()
			continue
		}

		// Cancel marked the record cancelled; it's being re-armed under the
		// same logical schedule, not actually cancelled.
		ls.record.Cancelled = false
		ls.record.ScheduleUnixSeconds = newTarget
		if _, err := n.armRecord(ls.record, ls.cb); err != nil {
			n.log.WithError(err).Warn("schedule drift re-arm failed")
		}
	}
}

