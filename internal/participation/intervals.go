package participation

import (
	"sort"
	"time"

	"aiaudit/internal/session"
)

// EffortInterval is the weighted span between two adjacent events, placed at its midpoint.
type EffortInterval struct {
	Midpoint time.Time
	Weight   float64
}

// BuildIntervals turns the events at or before horizon into effort intervals.
//
// Events are stably sorted by time. Each adjacent pair closer than the idle
// gap yields one interval weighted minutes × multiplier, where the multiplier
// lies in [base, base+span) and is derived from the later event's time.
func BuildIntervals(events []session.Event, horizon time.Time, p Params) []EffortInterval {
	p = p.withDefaults()

	sorted := filterEvents(events, horizon)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	if len(sorted) < 2 {
		return nil
	}

	intervals := make([]EffortInterval, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].Time, sorted[i].Time
		d := cur.Sub(prev)
		if d >= p.IdleGap {
			continue
		}
		multiplier := p.MultiplierBase + Unit(cur.UnixMilli())*p.MultiplierSpan
		w := d.Minutes() * multiplier
		if w < 0 {
			w = 0
		}
		intervals = append(intervals, EffortInterval{
			Midpoint: prev.Add(d / 2),
			Weight:   w,
		})
	}
	return intervals
}

func filterEvents(events []session.Event, horizon time.Time) []session.Event {
	out := make([]session.Event, 0, len(events))
	for _, e := range events {
		if !e.Time.After(horizon) {
			out = append(out, e)
		}
	}
	return out
}
