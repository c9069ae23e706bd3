// Package clock provides a monotonic-to-wall-clock time source and a
// single-shot scheduling primitive, optionally disciplined by SNTP.
package clock

import (
	"sync"
	"time"
)

// Clock is the shared timing abstraction. LocalClock and NetworkClock are
// its two variants (spec §9 design note).
type Clock interface {
	// Now returns the current unix time in seconds, as best known.
	Now() float64
	// Monotonic returns a monotonic seconds value unrelated to wall time.
	Monotonic() float64
	// ScheduleAt arms cb to fire once target (a unix-seconds timestamp) is
	// reached. Returns an empty handle and an error if target is already
	// in the past.
	ScheduleAt(targetUnix float64, cb func()) (Handle, error)
	// Cancel cancels a previously armed handle. Idempotent.
	Cancel(h Handle) bool
}

// Handle identifies an armed schedule. The zero value is never valid.
type Handle string

// LocalClock is an unsynchronized Clock: Now() is the system wall-clock
// unix time and Monotonic() is the process monotonic elapsed time; the
// two are separate readings, not the same value.
type LocalClock struct {
	start time.Time

	mu      sync.Mutex
	timers  map[Handle]*time.Timer
	counter uint64
}

// NewLocalClock constructs a LocalClock anchored to the instant of the call.
func NewLocalClock() *LocalClock {
	return &LocalClock{
		start:  time.Now(),
		timers: make(map[Handle]*time.Timer),
	}
}

// Monotonic returns seconds elapsed since the clock was constructed.
func (c *LocalClock) Monotonic() float64 {
	return time.Since(c.start).Seconds()
}

// Now reports the system wall-clock time in unix seconds, with no NTP
// correction applied.
func (c *LocalClock) Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// ScheduleAt arms a single-shot timer at targetUnix (wall-clock seconds).
func (c *LocalClock) ScheduleAt(targetUnix float64, cb func()) (Handle, error) {
	return scheduleAt(&c.mu, c.timers, &c.counter, func() float64 { return c.Now() }, targetUnix, cb)
}

// Cancel stops and forgets a handle. Returns false if it was already gone.
func (c *LocalClock) Cancel(h Handle) bool {
	return cancelHandle(&c.mu, c.timers, h)
}

func scheduleAt(mu *sync.Mutex, timers map[Handle]*time.Timer, counter *uint64, now func() float64, targetUnix float64, cb func()) (Handle, error) {
	mu.Lock()
	defer mu.Unlock()

	delay := targetUnix - now()
	if delay < 0 {
		return "", errSchedulePast
	}

	*counter++
	h := handleFrom(*counter)
	t := time.AfterFunc(time.Duration(delay*float64(time.Second)), func() {
		mu.Lock()
		delete(timers, h)
		mu.Unlock()
		cb()
	})
	timers[h] = t
	return h, nil
}

func cancelHandle(mu *sync.Mutex, timers map[Handle]*time.Timer, h Handle) bool {
	mu.Lock()
	defer mu.Unlock()
	t, ok := timers[h]
	if !ok {
		return false
	}
	t.Stop()
	delete(timers, h)
	return true
}

func handleFrom(n uint64) Handle {
	const digits = "0123456789abcdef"
	buf := make([]byte, 0, 16)
	if n == 0 {
		return Handle("sched-0")
	}
	var tmp [16]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = digits[n%16]
		n /= 16
	}
	buf = append(buf, "sched-"...)
	buf = append(buf, tmp[i:]...)
	return Handle(buf)
}
