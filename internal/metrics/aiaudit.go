package metrics

// Set is the instrument set shared by the tracker, the assistant and the CLI.
type Set struct {
	EventsRecorded *Counter
	EventsSkipped  *Counter
	EventsFailed   *Counter
	Exchanges      *Counter
	ProviderErrors *Counter
	ReplyLatency   *Histogram
	Scores         *Counter
	ActiveTrackers *Gauge
}

// NewSet registers the aiaudit instruments on r.
func NewSet(r *Registry) *Set {
	return &Set{
		EventsRecorded: r.Counter("events_recorded_total", "Activity events written to a session log"),
		EventsSkipped:  r.Counter("events_skipped_total", "Activity signals dropped by the idle interval"),
		EventsFailed:   r.Counter("events_failed_total", "Events the session log rejected"),
		Exchanges:      r.Counter("exchanges_total", "Completed chat turns recorded"),
		ProviderErrors: r.Counter("provider_errors_total", "Failed model calls"),
		ReplyLatency:   r.Histogram("reply_latency_seconds", "Time from question to recorded reply", LatencyBuckets),
		Scores:         r.Counter("scores_computed_total", "Participation scores computed"),
		ActiveTrackers: r.Gauge("active_trackers", "Trackers currently attached to a source"),
	}
}
