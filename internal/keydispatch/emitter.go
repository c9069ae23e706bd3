package keydispatch

import "github.com/sirupsen/logrus"

// NullEmitter discards key events. It is the default Emitter when no real
// OS binding is supplied — key injection is an external collaborator per
// spec §1, so the engine itself never opens an OS input handle.
type NullEmitter struct{}

// KeyDown implements Emitter.
func (NullEmitter) KeyDown(string) {}

// KeyUp implements Emitter.
func (NullEmitter) KeyUp(string) {}

// LoggingEmitter wraps another Emitter and logs every press/release at
// debug level, matching spec §6's "Logging" requirement for dispatch
// events without committing to a real OS backend here.
type LoggingEmitter struct {
	Next Emitter
	Log  *logrus.Entry
}

// NewLoggingEmitter wraps next (or NullEmitter if nil) with debug logging.
func NewLoggingEmitter(next Emitter, log *logrus.Entry) *LoggingEmitter {
	if next == nil {
		next = NullEmitter{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LoggingEmitter{Next: next, Log: log}
}

// KeyDown implements Emitter.
func (e *LoggingEmitter) KeyDown(key string) {
	e.Log.WithField("key", key).Debug("key down")
	e.Next.KeyDown(key)
}

// KeyUp implements Emitter.
func (e *LoggingEmitter) KeyUp(key string) {
	e.Log.WithField("key", key).Debug("key up")
	e.Next.KeyUp(key)
}
