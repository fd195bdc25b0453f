package tracking

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiaudit/internal/metrics"
	"aiaudit/internal/session"
)

func ms(v int64) time.Time { return time.UnixMilli(v).UTC() }

func kinds(s *session.Session) []session.EventKind {
	var out []session.EventKind
	for _, e := range s.Snapshot().Events {
		out = append(out, e.Kind)
	}
	return out
}

// ===== Idle policy =====

func TestIdlePolicy(t *testing.T) {
	sess := session.New(ms(0))
	tr := New(sess)

	tr.Handle(Signal{Kind: SignalActivity, Time: ms(5_000)})  // too soon after OPEN
	tr.Handle(Signal{Kind: SignalActivity, Time: ms(10_000)}) // exactly the interval
	tr.Handle(Signal{Kind: SignalActivity, Time: ms(19_999)})
	tr.Handle(Signal{Kind: SignalActivity, Time: ms(20_000)})

	assert.Equal(t, []session.EventKind{session.EventOpen, session.EventActivity, session.EventActivity}, kinds(sess))
	assert.Equal(t, Stats{Recorded: 2, Skipped: 2}, tr.Stats())
}

func TestTabSwitchAlwaysRecorded(t *testing.T) {
	sess := session.New(ms(0))
	tr := New(sess)

	tr.Handle(Signal{Kind: SignalTabSwitch, Time: ms(100), Tab: "assistant"})
	tr.Handle(Signal{Kind: SignalTabSwitch, Time: ms(200), Tab: "workspace"})
	// The tab switch resets the idle clock.
	tr.Handle(Signal{Kind: SignalActivity, Time: ms(5_000)})

	events := sess.Snapshot().Events
	require.Len(t, events, 3)
	assert.Equal(t, "workspace", events[2].Meta.Tab)
}

func TestCustomIdleIntervalAndOnRecord(t *testing.T) {
	sess := session.New(ms(0))
	var recorded []session.Event
	tr := New(sess, WithIdleInterval(time.Second), OnRecord(func(e session.Event) {
		recorded = append(recorded, e)
	}))

	tr.Handle(Signal{Kind: SignalActivity, Time: ms(1_000)})
	tr.Handle(Signal{Kind: SignalActivity, Time: ms(1_500)})

	require.Len(t, recorded, 1)
	assert.Equal(t, session.EventActivity, recorded[0].Kind)
}

func TestRecordFailureCounted(t *testing.T) {
	sess := session.New(ms(0))
	sess.SetMaxEvents(1)
	tr := New(sess)

	tr.Handle(Signal{Kind: SignalTabSwitch, Time: ms(1), Tab: "x"})
	assert.Equal(t, 1, tr.Stats().Failed)
}

func TestSignalsAfterLockStillAppended(t *testing.T) {
	sess := session.New(ms(0))
	require.NoError(t, sess.Submit(ms(100)))
	tr := New(sess)

	tr.Handle(Signal{Kind: SignalActivity, Time: ms(60_000)})
	assert.Equal(t, 3, sess.Len())
	at, _ := sess.SubmitTime()
	assert.Equal(t, ms(100), at)
}

func TestTrackerMetrics(t *testing.T) {
	sess := session.New(ms(0))
	sess.SetMaxEvents(3)
	m := metrics.NewSet(metrics.NewRegistry("test"))
	tr := New(sess, WithMetrics(m))
	src := NewManualSource()

	require.NoError(t, tr.Start(src))
	assert.Equal(t, int64(1), m.ActiveTrackers.Value())

	src.Emit(Signal{Kind: SignalActivity, Time: ms(1_000)})
	src.Emit(Signal{Kind: SignalActivity, Time: ms(20_000)})
	src.Emit(Signal{Kind: SignalActivity, Time: ms(40_000)})
	src.Emit(Signal{Kind: SignalTabSwitch, Time: ms(41_000), Tab: "x"})
	require.NoError(t, tr.Stop())

	assert.Equal(t, uint64(2), m.EventsRecorded.Value())
	assert.Equal(t, uint64(1), m.EventsSkipped.Value())
	assert.Equal(t, uint64(1), m.EventsFailed.Value())
	assert.Zero(t, m.ActiveTrackers.Value())
}

// ===== Attach / detach =====

func TestManualSourceLifecycle(t *testing.T) {
	sess := session.New(ms(0))
	tr := New(sess)
	src := NewManualSource()

	assert.False(t, src.Activity())
	require.NoError(t, tr.Start(src))
	assert.True(t, tr.Running())
	assert.ErrorIs(t, tr.Start(src), ErrAlreadyRunning)

	assert.True(t, src.Emit(Signal{Kind: SignalTabSwitch, Time: ms(10), Tab: "assistant"}))
	require.NoError(t, tr.Stop())
	assert.False(t, tr.Running())
	assert.ErrorIs(t, tr.Stop(), ErrNotRunning)

	assert.False(t, src.SwitchTab("workspace"))
	assert.Equal(t, 2, sess.Len())
}

func TestManualSourceStampsTime(t *testing.T) {
	src := NewManualSource()
	src.now = func() time.Time { return ms(42) }

	var got Signal
	require.NoError(t, src.Attach(func(s Signal) { got = s }))
	src.SwitchTab("workspace")
	assert.Equal(t, ms(42), got.Time)
	assert.Equal(t, SignalTabSwitch, got.Kind)
}

func TestFileSourceEmitsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.md")
	require.NoError(t, os.WriteFile(path, []byte("draft"), 0600))

	src, err := NewFileSource(path, 0)
	require.NoError(t, err)

	var mu sync.Mutex
	var signals []Signal
	got := make(chan struct{}, 16)
	require.NoError(t, src.Attach(func(s Signal) {
		mu.Lock()
		signals = append(signals, s)
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	}))

	// Writes to other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(path, []byte("draft two"), 0600))

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no activity signal")
	}
	require.NoError(t, src.Detach())
	assert.ErrorIs(t, src.Detach(), ErrNotRunning)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, signals)
	assert.Equal(t, SignalActivity, signals[0].Kind)
}

func TestFileSourceDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.md")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	src, err := NewFileSource(path, time.Hour)
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	require.NoError(t, src.Attach(func(Signal) {
		mu.Lock()
		count++
		mu.Unlock()
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0600))
	}
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, src.Detach())

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, count, 1)
}

func TestFileSourceMissingDirectory(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope", "essay.md"), 0)
	assert.Error(t, err)
}
