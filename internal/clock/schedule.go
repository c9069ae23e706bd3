package clock

// ScheduleRecord mirrors spec §3's ScheduleRecord data model for a
// single-shot synchronized performance start.
type ScheduleRecord struct {
	ID                    string
	Instrument            string
	WhenLocalHMSMs        string
	BaseUnixSeconds       float64
	ScheduleUnixSeconds   float64
	AutoLatencyMs         float64
	ManualCompensationMs  float64
	Handle                Handle
	Tempo                 float64
	Cancelled             bool
	Fired                 bool
}

// recomputeTarget implements spec §3's recomputation rule:
//
//	schedule_unix = base_unix + (rtt_min + manual + (ntp_delta if include_delta)) / 1000
func (r *ScheduleRecord) recomputeTarget(includeDelta bool, rttMinMs float64, ntpDeltaSeconds float64) float64 {
	adjustMs := rttMinMs + r.ManualCompensationMs
	if includeDelta {
		adjustMs += ntpDeltaSeconds * 1000.0
	}
	return r.BaseUnixSeconds + adjustMs/1000.0
}
