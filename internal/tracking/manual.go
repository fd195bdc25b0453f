package tracking

import (
	"sync"
	"time"
)

// ManualSource forwards signals pushed by the caller, for example from an
// editor integration or a UI.
type ManualSource struct {
	mu sync.RWMutex
	h  Handler
	// now stamps signals emitted without a time.
	now func() time.Time
}

// NewManualSource returns a detached manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{now: time.Now}
}

func (m *ManualSource) Attach(h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h != nil {
		return ErrAlreadyRunning
	}
	m.h = h
	return nil
}

func (m *ManualSource) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h == nil {
		return ErrNotRunning
	}
	m.h = nil
	return nil
}

// Emit delivers sig to the attached handler and reports whether one was attached.
func (m *ManualSource) Emit(sig Signal) bool {
	m.mu.RLock()
	h := m.h
	m.mu.RUnlock()
	if h == nil {
		return false
	}
	if sig.Time.IsZero() {
		sig.Time = m.now()
	}
	h(sig)
	return true
}

// Activity emits an activity signal stamped now.
func (m *ManualSource) Activity() bool {
	return m.Emit(Signal{Kind: SignalActivity})
}

// SwitchTab emits a tab switch to tab stamped now.
func (m *ManualSource) SwitchTab(tab string) bool {
	return m.Emit(Signal{Kind: SignalTabSwitch, Tab: tab})
}
