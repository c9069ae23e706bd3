package clock

import "errors"

// errSchedulePast is returned by ScheduleAt when the requested target is
// already behind the clock's current wall-time estimate (spec §4.1,
// §7 "Schedule in the past").
var errSchedulePast = errors.New("clock: schedule target is in the past")

// ErrSchedulePast is the exported sentinel callers can compare against.
var ErrSchedulePast = errSchedulePast
