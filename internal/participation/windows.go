package participation

import (
	"time"

	"aiaudit/internal/session"
)

// Window is the span after an AI reply during which activity counts as influenced.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in the window, both bounds inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// InfluenceWindows returns one window per MODEL exchange at or before horizon.
// Windows may overlap; membership in any of them counts.
func InfluenceWindows(exchanges []session.ChatExchange, horizon time.Time, p Params) []Window {
	p = p.withDefaults()

	var windows []Window
	for _, c := range exchanges {
		if c.Role != session.RoleModel || c.Time.After(horizon) {
			continue
		}
		windows = append(windows, Window{Start: c.Time, End: c.Time.Add(p.InfluenceWindow)})
	}
	return windows
}

// Influenced reports whether t falls inside any window.
func Influenced(windows []Window, t time.Time) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
