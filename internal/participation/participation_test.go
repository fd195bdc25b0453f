package participation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiaudit/internal/session"
)

func ms(v int64) time.Time { return time.UnixMilli(v).UTC() }

func events(kindTimes ...int64) []session.Event {
	out := make([]session.Event, len(kindTimes))
	for i, t := range kindTimes {
		kind := session.EventActivity
		if i == 0 {
			kind = session.EventOpen
		}
		out[i] = session.Event{Kind: kind, Time: ms(t)}
	}
	return out
}

func reply(t int64) session.ChatExchange {
	return session.ChatExchange{Role: session.RoleModel, Text: "hint", Time: ms(t), Intent: session.IntentConcept}
}

// ===== Unit =====

func TestUnitRangeAndDeterminism(t *testing.T) {
	var sum float64
	const n = 10_000
	for i := int64(0); i < n; i++ {
		seed := 1_700_000_000_000 + i*137
		u := Unit(seed)
		require.GreaterOrEqual(t, u, 0.0)
		require.Less(t, u, 1.0)
		require.Equal(t, u, Unit(seed))
		sum += u
	}
	mean := sum / n
	assert.InDelta(t, 0.5, mean, 0.05)
}

func TestUnitDistinctSeeds(t *testing.T) {
	assert.NotEqual(t, Unit(0), Unit(1))
	assert.NotEqual(t, Unit(-1), Unit(1))
	assert.NotEqual(t, Unit(60_000), Unit(120_000))
}

// ===== Intervals =====

func TestBuildIntervalsSortsAndWeighs(t *testing.T) {
	evs := events(0, 120_000, 60_000) // out of order on purpose
	got := BuildIntervals(evs, ms(1_000_000), DefaultParams())

	require.Len(t, got, 2)
	assert.Equal(t, ms(30_000), got[0].Midpoint)
	assert.Equal(t, ms(90_000), got[1].Midpoint)
	for _, iv := range got {
		assert.GreaterOrEqual(t, iv.Weight, MultiplierBase)
		assert.Less(t, iv.Weight, MultiplierBase+MultiplierSpan)
	}
	assert.InDelta(t, MultiplierBase+Unit(60_000)*MultiplierSpan, got[0].Weight, 1e-9)
	assert.InDelta(t, MultiplierBase+Unit(120_000)*MultiplierSpan, got[1].Weight, 1e-9)
}

func TestBuildIntervalsIdleGap(t *testing.T) {
	tests := []struct {
		name string
		gap  int64
		want int
	}{
		{"just under", int64(IdleGap/time.Millisecond) - 1, 1},
		{"exactly", int64(IdleGap / time.Millisecond), 0},
		{"over", int64(IdleGap/time.Millisecond) + 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildIntervals(events(0, tt.gap), ms(tt.gap), DefaultParams())
			assert.Len(t, got, tt.want)
		})
	}
}

func TestBuildIntervalsZeroDuration(t *testing.T) {
	got := BuildIntervals(events(500, 500), ms(500), DefaultParams())
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Weight)
	assert.Equal(t, ms(500), got[0].Midpoint)
}

func TestBuildIntervalsHorizon(t *testing.T) {
	got := BuildIntervals(events(0, 60_000, 120_000), ms(60_000), DefaultParams())
	assert.Len(t, got, 1)
}

func TestBuildIntervalsTooFewEvents(t *testing.T) {
	assert.Empty(t, BuildIntervals(nil, ms(0), DefaultParams()))
	assert.Empty(t, BuildIntervals(events(0), ms(0), DefaultParams()))
}

// ===== Windows =====

func TestInfluenceWindowsOnlyModelTurns(t *testing.T) {
	ex := []session.ChatExchange{
		{Role: session.RoleStudent, Time: ms(0)},
		reply(1000),
		reply(5000),
		reply(90_000_000),
	}
	ws := InfluenceWindows(ex, ms(10_000), DefaultParams())
	require.Len(t, ws, 2)
	assert.Equal(t, ms(1000), ws[0].Start)
	assert.Equal(t, ms(1000).Add(InfluenceWindow), ws[0].End)
}

func TestWindowInclusiveBounds(t *testing.T) {
	w := Window{Start: ms(0), End: ms(600_000)}
	assert.True(t, w.Contains(ms(0)))
	assert.True(t, w.Contains(ms(600_000)))
	assert.False(t, w.Contains(ms(-1)))
	assert.False(t, w.Contains(ms(600_001)))
	assert.False(t, Influenced(nil, ms(0)))
}

// ===== Scenarios =====

func TestScenarioNoAI(t *testing.T) {
	s := session.New(ms(0))
	require.NoError(t, s.RecordEvent(session.EventActivity, ms(60_000), nil))
	require.NoError(t, s.Submit(ms(60_000)))

	r := Compute(s.Snapshot(), nil, ms(10_000_000), DefaultParams())
	assert.Equal(t, 0, r.Ratio)
	assert.Equal(t, 100, r.SelfPct)
	assert.Equal(t, 0, r.AssistPct)
	assert.Equal(t, 0, r.CollabPct)
	assert.Equal(t, 1, r.TotalMinutes)
	assert.True(t, r.Locked)
	assert.Equal(t, LabelsAutonomousConstruction, r.Labels)
}

func TestScenarioFullyInfluenced(t *testing.T) {
	s := session.New(ms(0))
	require.NoError(t, s.RecordEvent(session.EventActivity, ms(600_000), nil))
	require.NoError(t, s.Submit(ms(600_000)))

	r := Compute(s.Snapshot(), []session.ChatExchange{reply(0)}, ms(600_000), DefaultParams())
	assert.Equal(t, 98, r.Ratio)
	assert.Equal(t, 0, r.SelfPct)
	assert.Equal(t, 0, r.AssistPct)
	assert.Equal(t, 100, r.CollabPct)
	assert.Equal(t, 10, r.TotalMinutes)
	assert.Equal(t, LabelsStructuredCollaboration, r.Labels)
	assert.Equal(t, []string{"structured collaboration", "algorithm-guided"}, r.Labels.Tags())
}

func TestScenarioLockFreezesScore(t *testing.T) {
	build := func() *session.Session {
		s := session.New(ms(0))
		require.NoError(t, s.RecordEvent(session.EventActivity, ms(40_000), nil))
		require.NoError(t, s.RecordEvent(session.EventActivity, ms(90_000), nil))
		require.NoError(t, s.Submit(ms(100_000)))
		return s
	}
	ex := []session.ChatExchange{reply(30_000)}

	base := build()
	want := Compute(base.Snapshot(), ex, ms(100_000), DefaultParams())

	late := build()
	require.NoError(t, late.RecordEvent(session.EventActivity, ms(200_000), nil))
	got := Compute(late.Snapshot(), append(ex, reply(150_000)), ms(5_000_000), DefaultParams())

	assert.Equal(t, want, got)
}

func TestAssistOnlyLightEffort(t *testing.T) {
	s := session.New(ms(0))
	require.NoError(t, s.RecordEvent(session.EventActivity, ms(1000), nil))
	require.NoError(t, s.Submit(ms(1000)))

	r := Compute(s.Snapshot(), []session.ChatExchange{reply(0)}, ms(1000), DefaultParams())
	assert.Equal(t, 0, r.SelfPct)
	assert.Equal(t, 100, r.AssistPct)
	assert.Equal(t, 0, r.CollabPct)
	assert.Equal(t, 98, r.Ratio)
	assert.Equal(t, LabelsAutonomousConstruction, r.Labels)
}

func TestMixedEffort(t *testing.T) {
	snap := session.Snapshot{
		StartTime: ms(0),
		Events:    events(0, 120_000, 1_000_000, 1_001_000, 1_121_000),
	}
	r := Compute(snap, []session.ChatExchange{reply(1_000_000)}, ms(1_200_000), DefaultParams())

	assert.Equal(t, 4, r.Breakdown.Intervals)
	assert.Equal(t, 2, r.Breakdown.Influenced)
	assert.Less(t, r.Breakdown.AssistWeight, CollabThreshold)
	assert.Positive(t, r.SelfPct)
	assert.Positive(t, r.CollabPct)
	assert.Equal(t, 100, r.SelfPct+r.AssistPct+r.CollabPct)
	assert.Equal(t, 20, r.TotalMinutes)
	assert.False(t, r.Locked)
}

func TestStudentOnlyExchanges(t *testing.T) {
	snap := session.Snapshot{StartTime: ms(0), Events: events(0, 60_000)}
	ex := []session.ChatExchange{{Role: session.RoleStudent, Text: "?", Time: ms(10)}}
	r := Compute(snap, ex, ms(60_000), DefaultParams())
	assert.Equal(t, 0, r.Ratio)
	assert.Equal(t, 100, r.SelfPct)
}

func TestZeroWeightIntervals(t *testing.T) {
	snap := session.Snapshot{StartTime: ms(0), Events: events(0, 0, 0)}
	r := Compute(snap, []session.ChatExchange{reply(0)}, ms(0), DefaultParams())
	assert.Equal(t, 0, r.Ratio)
	assert.Equal(t, 100, r.SelfPct)
	assert.Equal(t, 1, r.TotalMinutes)
}

func TestLiveScoreMovesWithNow(t *testing.T) {
	snap := session.Snapshot{StartTime: ms(0), Events: events(0, 60_000, 120_000)}
	early := Compute(snap, []session.ChatExchange{reply(0)}, ms(60_000), DefaultParams())
	later := Compute(snap, []session.ChatExchange{reply(0)}, ms(30*60_000), DefaultParams())

	assert.Equal(t, 1, early.Breakdown.Intervals)
	assert.Equal(t, 2, later.Breakdown.Intervals)
	assert.Equal(t, 30, later.TotalMinutes)
}

func TestCollabTagThreshold(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, LabelsAutonomousConstruction, labelsFor(35, p))
	assert.Equal(t, LabelsStructuredCollaboration, labelsFor(36, p))
}

func TestZeroParamsUseDefaults(t *testing.T) {
	snap := session.Snapshot{StartTime: ms(0), Events: events(0, 600_000)}
	ex := []session.ChatExchange{reply(0)}
	assert.Equal(t,
		Compute(snap, ex, ms(600_000), DefaultParams()),
		Compute(snap, ex, ms(600_000), Params{}))
}
