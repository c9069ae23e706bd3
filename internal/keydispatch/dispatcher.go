// Package keydispatch translates logical press/release requests into
// OS-level synthetic key events, enforcing the reference-count discipline
// of spec §4.2: only a 0->1 transition presses, only a 1->0 transition
// releases.
package keydispatch

import "sync"

// Emitter is the narrow capability interface the real OS keyboard
// injector implements. The engine never talks to the OS directly; per
// spec §1, key injection is an external collaborator.
type Emitter interface {
	KeyDown(key string)
	KeyUp(key string)
}

// Dispatcher owns the per-key reference counts described in spec §3's
// PlayerRuntimeState.active_counts and enforces refcount discipline.
type Dispatcher struct {
	emitter Emitter

	mu     sync.Mutex
	counts map[string]int
}

// New constructs a Dispatcher backed by emitter. A nil emitter is
// replaced with a NullEmitter.
func New(emitter Emitter) *Dispatcher {
	if emitter == nil {
		emitter = NullEmitter{}
	}
	return &Dispatcher{
		emitter: emitter,
		counts:  make(map[string]int),
	}
}

// Press increments the reference count for each key in keys. Only the
// 0->1 transition emits a real key-down. Empty-string keys are dropped
// silently (spec §4.2).
func (d *Dispatcher) Press(keys ...string) {
	d.mu.Lock()
	var toEmit []string
	for _, k := range keys {
		if k == "" {
			continue
		}
		d.counts[k]++
		if d.counts[k] == 1 {
			toEmit = append(toEmit, k)
		}
	}
	d.mu.Unlock()

	for _, k := range toEmit {
		d.emitter.KeyDown(k)
	}
}

// Release decrements the reference count for each key in keys. Only the
// 1->0 transition emits a real key-up. Releasing an unheld or unmapped
// key is a no-op (spec §4.2, §7 "Key dispatcher double-release").
func (d *Dispatcher) Release(keys ...string) {
	d.mu.Lock()
	var toEmit []string
	for _, k := range keys {
		if k == "" {
			continue
		}
		c, ok := d.counts[k]
		if !ok || c <= 0 {
			continue
		}
		c--
		if c == 0 {
			delete(d.counts, k)
			toEmit = append(toEmit, k)
		} else {
			d.counts[k] = c
		}
	}
	d.mu.Unlock()

	for _, k := range toEmit {
		d.emitter.KeyUp(k)
	}
}

// ReleaseAll drives every held key's count to zero, emitting a key-up for
// each (spec §3 "Reset-on-stop ... drained to zero with a final release
// pass"). Calling it twice in a row has no additional OS effect.
func (d *Dispatcher) ReleaseAll() {
	d.mu.Lock()
	held := make([]string, 0, len(d.counts))
	for k := range d.counts {
		held = append(held, k)
	}
	d.counts = make(map[string]int)
	d.mu.Unlock()

	for _, k := range held {
		d.emitter.KeyUp(k)
	}
}

// Count returns the current reference count for key (0 if unheld).
func (d *Dispatcher) Count(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[key]
}

// ActiveKeys returns a snapshot of all currently-held keys.
func (d *Dispatcher) ActiveKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.counts))
	for k, c := range d.counts {
		if c > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}
