// Package report turns a scored session into the audit report shown to
// reviewers, as text or as schema-checked JSON.
package report

import (
	"fmt"
	"sort"
	"time"

	"aiaudit/internal/participation"
	"aiaudit/internal/session"
)

// Headline is the report's one-line characterization of the session.
type Headline string

const (
	HeadlineDeepCollaboration Headline = "deep AI collaboration"
	HeadlineHumanLed          Headline = "human-led original work"
)

// DeepCollaborationRatio is the ratio above which the deep collaboration
// headline is used.
const DeepCollaborationRatio = 60

// Status tells whether the score is final.
type Status string

const (
	StatusArchived Status = "archived"
	StatusLive     Status = "live estimate"
)

// TimelineEntry is one chat turn placed on the session clock.
type TimelineEntry struct {
	Role   session.Role   `json:"role"`
	Text   string         `json:"text"`
	Time   time.Time      `json:"time"`
	Offset time.Duration  `json:"-"`
	Intent session.Intent `json:"intent"`
	// OffsetSec mirrors Offset for the JSON export.
	OffsetSec int64 `json:"offset_sec"`
}

// Report is the audit view of a session at a horizon.
type Report struct {
	SessionID   string               `json:"session_id"`
	AuditID     string               `json:"audit_id"`
	Fingerprint string               `json:"fingerprint"`
	FileName    string               `json:"file_name,omitempty"`
	StartTime   time.Time            `json:"start_time"`
	GeneratedAt time.Time            `json:"generated_at"`
	Status      Status               `json:"status"`
	Headline    Headline             `json:"headline"`
	Tags        []string             `json:"tags"`
	Score       participation.Result `json:"score"`
	Events      int                  `json:"events"`
	Timeline    []TimelineEntry      `json:"timeline"`
	Summary     string               `json:"summary,omitempty"`
}

// Build scores snap and assembles the report. Only turns at or before the
// horizon appear on the timeline, matching what the score counted.
func Build(snap session.Snapshot, exchanges []session.ChatExchange, now time.Time, p participation.Params) (*Report, error) {
	score := participation.Compute(snap, exchanges, now, p)
	fp, err := session.Fingerprint(snap, exchanges, now)
	if err != nil {
		return nil, fmt.Errorf("fingerprint session %s: %w", snap.ID, err)
	}

	r := &Report{
		SessionID:   snap.ID,
		AuditID:     session.FromSnapshot(snap).AuditID(),
		Fingerprint: fp,
		FileName:    snap.FileName,
		StartTime:   snap.StartTime,
		GeneratedAt: now.UTC(),
		Status:      StatusLive,
		Headline:    HeadlineHumanLed,
		Tags:        score.Labels.Tags(),
		Score:       score,
		Timeline:    timeline(snap.StartTime, exchanges, score.Horizon),
	}
	if score.Locked {
		r.Status = StatusArchived
	}
	if score.Ratio > DeepCollaborationRatio {
		r.Headline = HeadlineDeepCollaboration
	}
	for _, e := range snap.Events {
		if !e.Time.After(score.Horizon) {
			r.Events++
		}
	}
	return r, nil
}

func timeline(start time.Time, exchanges []session.ChatExchange, h time.Time) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(exchanges))
	for _, c := range exchanges {
		if c.Time.After(h) {
			continue
		}
		off := max(c.Time.Sub(start), 0)
		out = append(out, TimelineEntry{
			Role:      c.Role,
			Text:      c.Text,
			Time:      c.Time,
			Offset:    off,
			Intent:    c.Intent,
			OffsetSec: int64(off / time.Second),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
