package participation

import (
	"math"
	"time"

	"aiaudit/internal/session"
)

// Labels is the qualitative tag set derived from the collaboration share.
type Labels string

const (
	LabelsStructuredCollaboration Labels = "structured_collaboration"
	LabelsAutonomousConstruction  Labels = "autonomous_construction"
)

// Tags returns the two display tags of the label set.
func (l Labels) Tags() []string {
	if l == LabelsStructuredCollaboration {
		return []string{"structured collaboration", "algorithm-guided"}
	}
	return []string{"autonomous construction", "knowledge internalization"}
}

// Breakdown is the raw weight split behind a Result.
type Breakdown struct {
	TotalWeight  float64 `json:"total_weight"`
	AIWeight     float64 `json:"ai_weight"`
	AssistWeight float64 `json:"assist_weight"`
	CollabWeight float64 `json:"collab_weight"`
	Intervals    int     `json:"intervals"`
	Influenced   int     `json:"influenced"`
}

// Aggregate sums interval weights and splits the influenced part by the
// collaboration threshold: weight < θ is assisted, weight ≥ θ collaborative.
func Aggregate(intervals []EffortInterval, windows []Window, p Params) Breakdown {
	p = p.withDefaults()

	b := Breakdown{Intervals: len(intervals)}
	for _, iv := range intervals {
		b.TotalWeight += iv.Weight
		if !Influenced(windows, iv.Midpoint) {
			continue
		}
		b.Influenced++
		b.AIWeight += iv.Weight
		if iv.Weight < p.CollabThreshold {
			b.AssistWeight += iv.Weight
		} else {
			b.CollabWeight += iv.Weight
		}
	}
	return b
}

// Result is the AI Participation score of a session at a horizon.
type Result struct {
	// Ratio is the AI-influenced share of effort in percent: 0 when no
	// influenced effort exists, otherwise clamped to [2, 98].
	Ratio        int       `json:"ratio"`
	SelfPct      int       `json:"self_pct"`
	AssistPct    int       `json:"assist_pct"`
	CollabPct    int       `json:"collab_pct"`
	TotalMinutes int       `json:"total_minutes"`
	Locked       bool      `json:"locked"`
	Labels       Labels    `json:"labels"`
	Horizon      time.Time `json:"horizon"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Compute scores a session snapshot against its chat exchanges.
//
// The horizon is the snapshot's submit time when locked, otherwise now.
// Events and exchanges after the horizon are ignored, so a locked session
// scores identically no matter what is appended later.
func Compute(snap session.Snapshot, exchanges []session.ChatExchange, now time.Time, p Params) Result {
	p = p.withDefaults()
	h := snap.Horizon(now)

	intervals := BuildIntervals(snap.Events, h, p)
	windows := InfluenceWindows(exchanges, h, p)
	b := Aggregate(intervals, windows, p)

	r := Result{
		Locked:       snap.Locked(),
		Horizon:      h,
		Breakdown:    b,
		TotalMinutes: totalMinutes(snap.StartTime, h),
	}

	if countUpTo(exchanges, h) == 0 || len(intervals) == 0 || b.TotalWeight <= 0 {
		r.SelfPct = 100
		r.Labels = labelsFor(0, p)
		return r
	}

	total := b.TotalWeight
	r.SelfPct = percent(total-b.AIWeight, total)
	r.AssistPct = min(percent(b.AssistWeight, total), 100-r.SelfPct)
	r.CollabPct = 100 - r.SelfPct - r.AssistPct
	// The [RatioFloor, RatioCeil] clamp only applies to a positive AI
	// share; with no AI-influenced weight the ratio stays 0.
	if b.AIWeight > 0 {
		r.Ratio = clamp(percent(b.AIWeight, total), RatioFloor, RatioCeil)
	}
	r.Labels = labelsFor(r.CollabPct, p)
	return r
}

func labelsFor(collabPct int, p Params) Labels {
	if collabPct > p.CollabTagPct {
		return LabelsStructuredCollaboration
	}
	return LabelsAutonomousConstruction
}

func totalMinutes(start, horizon time.Time) int {
	m := int(math.Round(horizon.Sub(start).Minutes()))
	return max(1, m)
}

func countUpTo(exchanges []session.ChatExchange, h time.Time) int {
	n := 0
	for _, c := range exchanges {
		if !c.Time.After(h) {
			n++
		}
	}
	return n
}

func percent(part, total float64) int {
	return int(math.Round(part / total * 100))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
