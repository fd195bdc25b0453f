// Package participation computes the AI Participation score of a session.
//
// The score estimates how much measured effort happened inside the influence
// window of an AI reply. It is a pure function of the session snapshot, the
// chat exchanges and the evaluation instant: no I/O, no hidden state, and the
// same inputs always give the same Result.
package participation

import "time"

// Scoring constants. They are part of the scoring contract; changing any of
// them changes every historical score.
const (
	// InfluenceWindow is how long an AI reply is assumed to influence activity (τ).
	InfluenceWindow = 10 * time.Minute
	// CollabThreshold splits influenced effort into assisted (< θ) and collaborative (≥ θ).
	CollabThreshold = 50.0
	// IdleGap discards a pair of adjacent events whose distance reaches it.
	IdleGap = 15 * time.Minute
	// MultiplierBase and MultiplierSpan define the per-minute weight range [40, 70).
	MultiplierBase = 40.0
	MultiplierSpan = 30.0
	// CollabTagPct is the collaboration share above which the session is
	// labelled as structured collaboration.
	CollabTagPct = 35
	// RatioFloor and RatioCeil clamp the headline ratio when AI effort exists.
	RatioFloor = 2
	RatioCeil  = 98
)

// Params carries the scoring constants. DefaultParams returns the contract
// values; other values are only meant for experiments and tests.
type Params struct {
	InfluenceWindow time.Duration
	CollabThreshold float64
	IdleGap         time.Duration
	MultiplierBase  float64
	MultiplierSpan  float64
	CollabTagPct    int
}

// DefaultParams returns the contract scoring constants.
func DefaultParams() Params {
	return Params{
		InfluenceWindow: InfluenceWindow,
		CollabThreshold: CollabThreshold,
		IdleGap:         IdleGap,
		MultiplierBase:  MultiplierBase,
		MultiplierSpan:  MultiplierSpan,
		CollabTagPct:    CollabTagPct,
	}
}

// withDefaults fills zero fields so a zero Params behaves like DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.InfluenceWindow <= 0 {
		p.InfluenceWindow = d.InfluenceWindow
	}
	if p.CollabThreshold <= 0 {
		p.CollabThreshold = d.CollabThreshold
	}
	if p.IdleGap <= 0 {
		p.IdleGap = d.IdleGap
	}
	if p.MultiplierBase <= 0 {
		p.MultiplierBase = d.MultiplierBase
	}
	if p.MultiplierSpan <= 0 {
		p.MultiplierSpan = d.MultiplierSpan
	}
	if p.CollabTagPct <= 0 {
		p.CollabTagPct = d.CollabTagPct
	}
	return p
}
