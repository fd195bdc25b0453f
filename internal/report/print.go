package report

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

const ruleWidth = 72

// PrintReport writes the formatted audit report to w.
func PrintReport(w io.Writer, r *Report) {
	if r == nil {
		fmt.Fprintln(w, "No report data available")
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintln(w, "                    AI PARTICIPATION AUDIT REPORT")
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintln(w)

	auditID := r.AuditID
	if auditID == "" {
		auditID = "pending submission"
	}
	fmt.Fprintf(w, "Audit ID:       %s\n", auditID)
	fmt.Fprintf(w, "Session:        %s\n", r.SessionID)
	if r.FileName != "" {
		fmt.Fprintf(w, "File:           %s\n", r.FileName)
	}
	fmt.Fprintf(w, "Started:        %s\n", r.StartTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Horizon:        %s\n", r.Score.Horizon.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:       %s\n", FormatMinutes(r.Score.TotalMinutes))
	fmt.Fprintf(w, "Status:         %s\n", r.Status)
	fmt.Fprintf(w, "Events:         %d\n", r.Events)
	fmt.Fprintf(w, "Exchanges:      %d\n", len(r.Timeline))
	fmt.Fprintln(w)

	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	fmt.Fprintln(w, "PARTICIPATION")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	fmt.Fprintln(w)

	s := r.Score
	fmt.Fprintf(w, "AI Participation Ratio:   %3d%%  %s\n", s.Ratio, FormatMetricBar(float64(s.Ratio), 0, 100, 20))
	fmt.Fprintf(w, "  -> %s\n\n", interpretRatio(s.Ratio))
	fmt.Fprintf(w, "Self-driven:              %3d%%  %s\n", s.SelfPct, FormatMetricBar(float64(s.SelfPct), 0, 100, 20))
	fmt.Fprintf(w, "AI-assisted:              %3d%%  %s\n", s.AssistPct, FormatMetricBar(float64(s.AssistPct), 0, 100, 20))
	fmt.Fprintf(w, "Deep collaboration:       %3d%%  %s\n", s.CollabPct, FormatMetricBar(float64(s.CollabPct), 0, 100, 20))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Effort intervals:         %d (%d AI-influenced)\n", s.Breakdown.Intervals, s.Breakdown.Influenced)
	fmt.Fprintf(w, "Effort weight:            %.1f (AI %.1f)\n", s.Breakdown.TotalWeight, s.Breakdown.AIWeight)
	fmt.Fprintf(w, "Tags:                     %s\n", strings.Join(r.Tags, ", "))
	fmt.Fprintln(w)

	if r.Summary != "" {
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
		fmt.Fprintln(w, "SUMMARY")
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.Summary)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	fmt.Fprintf(w, "Fingerprint: %s\n", r.Fingerprint)
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintf(w, "ASSESSMENT: %s\n", strings.ToUpper(string(r.Headline)))
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
}

// PrintTimeline writes the chat turns in chronological order.
func PrintTimeline(w io.Writer, r *Report) {
	if r == nil || len(r.Timeline) == 0 {
		fmt.Fprintln(w, "No exchanges recorded")
		return
	}
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	fmt.Fprintln(w, "TIMELINE")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	for _, e := range r.Timeline {
		fmt.Fprintf(w, "%s  +%-8s %-7s %-10s %s\n",
			e.Time.Format("15:04:05"),
			formatOffset(e.Offset),
			e.Role,
			e.Intent,
			Snippet(e.Text, 40),
		)
	}
}

// Snippet collapses whitespace and shortens text to at most n runes.
func Snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return string(r[:n-1]) + "…"
}

// FormatMinutes renders a minute count as "1 hour, 5 minutes".
func FormatMinutes(m int) string {
	if m < 0 {
		m = 0
	}
	h, m := m/60, m%60
	if h == 0 {
		return plural(m, "minute")
	}
	return plural(h, "hour") + ", " + plural(m, "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatMetricBar produces an ASCII bar such as "[#####---]".
func FormatMetricBar(value, min, max float64, width int) string {
	if width <= 0 {
		return ""
	}
	if max <= min {
		return strings.Repeat("-", width)
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}
	filled := int(normalized * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func interpretRatio(ratio int) string {
	switch {
	case ratio == 0:
		return "None: no effort fell inside an AI influence window"
	case ratio > DeepCollaborationRatio:
		return "High: most effort followed AI replies"
	case ratio > 30:
		return "Moderate: AI replies shaped part of the work"
	default:
		return "Low: AI consulted occasionally"
	}
}
