package report

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiaudit/internal/participation"
	"aiaudit/internal/session"
)

var start = time.UnixMilli(1_700_000_000_000).UTC()

// collaborativeSession has one reply at the start and steady activity for
// ten minutes, so every interval falls inside the influence window.
func collaborativeSession(t *testing.T) (*session.Session, *session.Transcript) {
	t.Helper()
	sess := session.New(start)
	sess.SetFileName("essay.md")
	tr := session.NewTranscript()
	_, err := sess.RecordExchange(tr, session.RoleStudent, "如何组织论证结构?", start)
	require.NoError(t, err)
	_, err = sess.RecordExchange(tr, session.RoleModel, "## 结构\n- 引言\n- 论证", start.Add(time.Second))
	require.NoError(t, err)
	for m := 1; m <= 9; m++ {
		require.NoError(t, sess.RecordEvent(session.EventActivity, start.Add(time.Duration(m)*time.Minute), nil))
	}
	require.NoError(t, sess.Submit(start.Add(10*time.Minute)))
	return sess, tr
}

func TestBuildArchivedCollaboration(t *testing.T) {
	sess, tr := collaborativeSession(t)
	now := start.Add(time.Hour)

	r, err := Build(sess.Snapshot(), tr.Exchanges(), now, participation.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, sess.ID(), r.SessionID)
	assert.Equal(t, sess.AuditID(), r.AuditID)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), r.Fingerprint)
	assert.Equal(t, "essay.md", r.FileName)
	assert.Equal(t, StatusArchived, r.Status)
	assert.Equal(t, HeadlineDeepCollaboration, r.Headline)
	assert.Equal(t, 98, r.Score.Ratio)
	assert.Equal(t, 0, r.Score.SelfPct)
	assert.Equal(t, 10, r.Score.TotalMinutes)
	assert.Equal(t, r.Score.Labels.Tags(), r.Tags)
	assert.Equal(t, sess.Len(), r.Events)
	require.Len(t, r.Timeline, 2)
	assert.Equal(t, session.RoleStudent, r.Timeline[0].Role)
	assert.Equal(t, int64(1), r.Timeline[1].OffsetSec)
}

func TestBuildLiveHumanLed(t *testing.T) {
	sess := session.New(start)
	require.NoError(t, sess.RecordEvent(session.EventActivity, start.Add(2*time.Minute), nil))

	r, err := Build(sess.Snapshot(), nil, start.Add(5*time.Minute), participation.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, StatusLive, r.Status)
	assert.Empty(t, r.AuditID)
	assert.Equal(t, HeadlineHumanLed, r.Headline)
	assert.Equal(t, 0, r.Score.Ratio)
	assert.Equal(t, 100, r.Score.SelfPct)
	assert.Equal(t, participation.LabelsAutonomousConstruction, r.Score.Labels)
	assert.Empty(t, r.Timeline)
}

func TestBuildIgnoresTurnsAfterHorizon(t *testing.T) {
	sess, tr := collaborativeSession(t)
	before, err := Build(sess.Snapshot(), tr.Exchanges(), start.Add(time.Hour), participation.Params{})
	require.NoError(t, err)

	_, err = sess.RecordExchange(tr, session.RoleStudent, "late question", start.Add(20*time.Minute))
	require.NoError(t, err)
	_, err = sess.RecordExchange(tr, session.RoleModel, "late answer", start.Add(21*time.Minute))
	require.NoError(t, err)

	after, err := Build(sess.Snapshot(), tr.Exchanges(), start.Add(2*time.Hour), participation.Params{})
	require.NoError(t, err)

	assert.Equal(t, before.Fingerprint, after.Fingerprint)
	assert.Equal(t, before.Score.Ratio, after.Score.Ratio)
	assert.Equal(t, before.Events, after.Events)
	assert.Len(t, after.Timeline, 2)
}

func TestTimelineIsChronological(t *testing.T) {
	exchanges := []session.ChatExchange{
		{Role: session.RoleModel, Text: "b", Time: start.Add(2 * time.Minute), Intent: session.IntentConcept},
		{Role: session.RoleStudent, Text: "a", Time: start.Add(time.Minute), Intent: session.IntentConcept},
		{Role: session.RoleStudent, Text: "early", Time: start.Add(-time.Second), Intent: session.IntentConcept},
	}
	got := timeline(start, exchanges, start.Add(time.Hour))
	require.Len(t, got, 3)
	assert.Equal(t, "early", got[0].Text)
	assert.Zero(t, got[0].OffsetSec)
	assert.Equal(t, "a", got[1].Text)
	assert.Equal(t, int64(120), got[2].OffsetSec)
}

func TestExportValidates(t *testing.T) {
	sess, tr := collaborativeSession(t)
	r, err := Build(sess.Snapshot(), tr.Exchanges(), start.Add(time.Hour), participation.DefaultParams())
	require.NoError(t, err)
	r.Summary = "学生在AI提示下完成了论证结构。"

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, r))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "archived", decoded["status"])
	assert.Equal(t, r.Fingerprint, decoded["fingerprint"])
	score := decoded["score"].(map[string]any)
	assert.EqualValues(t, 98, score["ratio"])
}

func TestExportLiveReportValidates(t *testing.T) {
	sess := session.New(start)
	r, err := Build(sess.Snapshot(), nil, start.Add(time.Minute), participation.DefaultParams())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, r))
	assert.Contains(t, buf.String(), `"audit_id": ""`)
}

func TestExportRejectsInvalidReport(t *testing.T) {
	sess, tr := collaborativeSession(t)
	r, err := Build(sess.Snapshot(), tr.Exchanges(), start.Add(time.Hour), participation.DefaultParams())
	require.NoError(t, err)

	r.Status = "pending"
	var buf bytes.Buffer
	err = Export(&buf, r)
	assert.ErrorIs(t, err, ErrInvalidReport)
	assert.Zero(t, buf.Len())

	r.Status = StatusArchived
	r.Score.Ratio = 150
	assert.ErrorIs(t, Export(&buf, r), ErrInvalidReport)

	assert.Error(t, Export(&buf, nil))
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	err := Validate([]byte("{"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidReport)
}

func TestPrintReport(t *testing.T) {
	sess, tr := collaborativeSession(t)
	r, err := Build(sess.Snapshot(), tr.Exchanges(), start.Add(time.Hour), participation.DefaultParams())
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintReport(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "AI PARTICIPATION AUDIT REPORT")
	assert.Contains(t, out, "Audit ID:       "+sess.AuditID())
	assert.Contains(t, out, "File:           essay.md")
	assert.Contains(t, out, "Status:         archived")
	assert.Contains(t, out, "Duration:       10 minutes")
	assert.Contains(t, out, "AI Participation Ratio:    98%  [###################-]")
	assert.Contains(t, out, "ASSESSMENT: DEEP AI COLLABORATION")
	assert.NotContains(t, out, "SUMMARY")
}

func TestPrintReportLiveAndNil(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, nil)
	assert.Equal(t, "No report data available\n", buf.String())

	r, err := Build(session.New(start).Snapshot(), nil, start.Add(time.Minute), participation.DefaultParams())
	require.NoError(t, err)
	r.Summary = "summary line"
	buf.Reset()
	PrintReport(&buf, r)
	assert.Contains(t, buf.String(), "Audit ID:       pending submission")
	assert.Contains(t, buf.String(), "summary line")
	assert.Contains(t, buf.String(), "ASSESSMENT: HUMAN-LED ORIGINAL WORK")
}

func TestPrintTimeline(t *testing.T) {
	sess, tr := collaborativeSession(t)
	r, err := Build(sess.Snapshot(), tr.Exchanges(), start.Add(time.Hour), participation.DefaultParams())
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintTimeline(&buf, r)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[3], "STUDENT")
	assert.Contains(t, lines[3], "METHOD")
	assert.Contains(t, lines[4], "+0:01")
	assert.Contains(t, lines[4], "## 结构 - 引言 - 论证")

	buf.Reset()
	PrintTimeline(&buf, &Report{})
	assert.Equal(t, "No exchanges recorded\n", buf.String())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", Snippet("a\n b\t c", 10))
	assert.Equal(t, "abcd…", Snippet("abcdefgh", 5))
	assert.Equal(t, "学术辅…", Snippet("学术辅助中心", 4))
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0 minutes"},
		{1, "1 minute"},
		{59, "59 minutes"},
		{60, "1 hour, 0 minutes"},
		{125, "2 hours, 5 minutes"},
		{-3, "0 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMinutes(tt.in))
	}
}

func TestFormatMetricBar(t *testing.T) {
	assert.Equal(t, "[##########----------]", FormatMetricBar(50, 0, 100, 20))
	assert.Equal(t, "[####]", FormatMetricBar(200, 0, 100, 4))
	assert.Equal(t, "[----]", FormatMetricBar(-1, 0, 100, 4))
	assert.Equal(t, "----", FormatMetricBar(1, 1, 1, 4))
	assert.Empty(t, FormatMetricBar(1, 0, 1, 0))
}
