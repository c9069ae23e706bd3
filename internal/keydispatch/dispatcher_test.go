package keydispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingEmitter struct {
	downs []string
	ups   []string
}

func (e *recordingEmitter) KeyDown(k string) { e.downs = append(e.downs, k) }
func (e *recordingEmitter) KeyUp(k string)   { e.ups = append(e.ups, k) }

func TestPressOnlyEmitsOnZeroToOneTransition(t *testing.T) {
	e := &recordingEmitter{}
	d := New(e)

	d.Press("q")
	d.Press("q")
	d.Press("q")

	assert.Equal(t, []string{"q"}, e.downs)
	assert.Equal(t, 3, d.Count("q"))
}

func TestReleaseOnlyEmitsOnOneToZeroTransition(t *testing.T) {
	e := &recordingEmitter{}
	d := New(e)

	d.Press("q")
	d.Press("q")
	d.Release("q")
	assert.Empty(t, e.ups)
	d.Release("q")
	assert.Equal(t, []string{"q"}, e.ups)
}

func TestReleaseUnheldKeyIsNoOp(t *testing.T) {
	e := &recordingEmitter{}
	d := New(e)
	d.Release("z")
	assert.Empty(t, e.ups)
}

func TestEmptyKeyDropped(t *testing.T) {
	e := &recordingEmitter{}
	d := New(e)
	d.Press("")
	d.Release("")
	assert.Empty(t, e.downs)
	assert.Empty(t, e.ups)
}

func TestReleaseAllDrainsAndIsIdempotent(t *testing.T) {
	e := &recordingEmitter{}
	d := New(e)
	d.Press("a", "b", "a")

	d.ReleaseAll()
	assert.ElementsMatch(t, []string{"a", "b"}, e.ups)

	e.ups = nil
	d.ReleaseAll()
	assert.Empty(t, e.ups)
}

func TestRefcountEquivalence(t *testing.T) {
	e := &recordingEmitter{}
	d := New(e)

	presses := []string{"a", "a", "b", "a", "b"}
	for _, k := range presses {
		d.Press(k)
	}

	// number of real key-downs emitted for a key equals the number of
	// 0->1 transitions, i.e. exactly one per key regardless of repeats.
	assert.Len(t, e.downs, 2)
}
