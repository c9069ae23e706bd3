package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClockScheduleRejectsPast(t *testing.T) {
	c := NewLocalClock()
	_, err := c.ScheduleAt(c.Now()-0.010, func() {})
	assert.ErrorIs(t, err, ErrSchedulePast)
}

func TestLocalClockScheduleFires(t *testing.T) {
	c := NewLocalClock()
	fired := make(chan struct{})
	_, err := c.ScheduleAt(c.Now()+0.030, func() { close(fired) })
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not fire within timeout")
	}
}

func TestLocalClockCancelIdempotent(t *testing.T) {
	c := NewLocalClock()
	h, err := c.ScheduleAt(c.Now()+5, func() {})
	require.NoError(t, err)

	assert.True(t, c.Cancel(h))
	assert.False(t, c.Cancel(h))
}

func TestNetworkClockArmPopulatesReproducibleBase(t *testing.T) {
	nc := NewNetworkClock(DefaultNetworkClockConfig(), nil)
	// Simulate a prior successful sync so auto latency/drift aren't zero.
	nc.mu.Lock()
	nc.state = ClockState{LastSyncOK: true, LastRTTSeconds: 0.020, LastSysDriftMs: 3}
	nc.mu.Unlock()

	target := nc.Now() + 5
	h, err := nc.ScheduleAt(target, func() {})
	require.NoError(t, err)
	defer nc.Cancel(h)

	nc.schedMu.Lock()
	ls := nc.schedules[h]
	nc.schedMu.Unlock()
	require.NotNil(t, ls)

	// recomputeTarget with the SAME inputs used to arm must reproduce the
	// original target; this is the invariant that previously broke when
	// BaseUnixSeconds was left at zero.
	reproduced := ls.record.recomputeTarget(true, ls.record.AutoLatencyMs, nc.state.LastSysDriftMs/1000.0)
	assert.InDelta(t, target, reproduced, 1e-9)
	assert.NotEqual(t, 0.0, ls.record.BaseUnixSeconds)
}

func TestScheduleRecordRecomputeTarget(t *testing.T) {
	r := &ScheduleRecord{BaseUnixSeconds: 1000, ManualCompensationMs: 10}
	got := r.recomputeTarget(true, 5, 0.002)
	// (5 + 10 + 2) / 1000 = 0.017
	assert.InDelta(t, 1000.017, got, 1e-9)

	got2 := r.recomputeTarget(false, 5, 0.002)
	assert.InDelta(t, 1000.015, got2, 1e-9)
}
