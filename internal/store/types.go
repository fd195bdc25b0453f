package store

import "time"

// Summary describes a stored session without loading its logs.
type Summary struct {
	ID         string
	StartTime  time.Time
	SubmitTime *time.Time
	FileName   string
	Events     int
	Exchanges  int
}

// Locked reports whether the session has been submitted.
func (s Summary) Locked() bool { return s.SubmitTime != nil }
