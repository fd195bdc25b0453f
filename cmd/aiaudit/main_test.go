package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiaudit/internal/logging"
	"aiaudit/internal/participation"
	"aiaudit/internal/report"
	"aiaudit/internal/session"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) at(d time.Duration) *fakeClock {
	c.t = t0.Add(d)
	return c
}

var t0 = time.UnixMilli(1_700_000_000_000).UTC()

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AIAUDIT_DATA_DIR", dir)
	t.Setenv("AIAUDIT_STORAGE_PATH", "")
	t.Setenv("AIAUDIT_CHAT_PROVIDER", "echo")
	t.Setenv("AIAUDIT_CHAT_MODEL", "")
	t.Setenv("AIAUDIT_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, clk *fakeClock, args ...string) (string, error) {
	t.Helper()
	a := &app{now: clk.now}
	cmd := newAppCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.NoError(t, a.close())
	return out.String(), err
}

func mustRun(t *testing.T, clk *fakeClock, args ...string) string {
	t.Helper()
	out, err := run(t, clk, args...)
	require.NoError(t, err, "aiaudit %s", strings.Join(args, " "))
	return out
}

func TestSessionLifecycle(t *testing.T) {
	dir := setupEnv(t)
	clk := &fakeClock{t: t0}

	id := strings.TrimSpace(mustRun(t, clk, "open", "--file", "essay.md"))
	require.NotEmpty(t, id)

	out := mustRun(t, clk.at(time.Minute), "ask", id, "如何写引言")
	assert.Contains(t, out, "> 如何写引言")

	assert.Equal(t, "recorded ACTIVITY\n", mustRun(t, clk.at(2*time.Minute), "event", id, "activity"))
	assert.Equal(t, "skipped: within idle interval\n", mustRun(t, clk.at(2*time.Minute+5*time.Second), "event", id, "activity"))

	_, err := run(t, clk, "event", id, "switch-tab")
	assert.ErrorContains(t, err, "requires --tab")
	assert.Equal(t, "recorded SWITCH_TAB\n", mustRun(t, clk, "event", id, "switch-tab", "--tab", "chat"))
	_, err = run(t, clk, "event", id, "submit")
	assert.ErrorContains(t, err, "recorded by their own command")

	for m := 3; m <= 9; m++ {
		mustRun(t, clk.at(time.Duration(m)*time.Minute), "event", id, "activity")
	}

	out = mustRun(t, clk.at(10*time.Minute), "submit", id)
	assert.Contains(t, out, "submitted "+id+" (HASH-")
	_, err = run(t, clk.at(11*time.Minute), "submit", id)
	assert.ErrorIs(t, err, session.ErrAlreadySubmitted)

	var res participation.Result
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, clk.at(time.Hour), "score", id, "--json")), &res))
	assert.True(t, res.Locked)
	assert.Greater(t, res.Ratio, report.DeepCollaborationRatio)
	assert.Equal(t, 10, res.TotalMinutes)
	assert.Equal(t, 100, res.SelfPct+res.AssistPct+res.CollabPct)

	out = mustRun(t, clk, "report", id, "--timeline")
	assert.Contains(t, out, "AI PARTICIPATION AUDIT REPORT")
	assert.Contains(t, out, "File:           essay.md")
	assert.Contains(t, out, "TIMELINE")
	assert.Contains(t, out, "deep AI collaboration (archived)")

	exportPath := filepath.Join(dir, "out", "report.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(exportPath), 0700))
	assert.Contains(t, mustRun(t, clk, "export", id, "-o", exportPath), exportPath)
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	require.NoError(t, report.Validate(data))

	out = mustRun(t, clk, "sessions")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "submitted")

	assert.Contains(t, mustRun(t, clk, "summary", "latest"), "Analyze the following student interaction log")

	audit, err := os.ReadFile(filepath.Join(dir, "logs", "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), `"event_type":"submit"`)
}

func TestAskSharesRequestIDAcrossTurns(t *testing.T) {
	dir := setupEnv(t)
	clk := &fakeClock{t: t0}

	id := strings.TrimSpace(mustRun(t, clk, "open"))
	mustRun(t, clk.at(time.Minute), "ask", id, "how do I cite this")
	mustRun(t, clk.at(2*time.Minute), "ask", id, "explain the outline")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "audit.log"))
	require.NoError(t, err)

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var ev logging.AuditEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		if ev.EventType == logging.AuditEventExchange {
			require.NotEmpty(t, ev.RequestID)
			ids = append(ids, ev.RequestID)
		}
	}
	require.Len(t, ids, 4)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[2], ids[3])
	assert.NotEqual(t, ids[0], ids[2])
}

func TestScoreIsStableAfterSubmit(t *testing.T) {
	setupEnv(t)
	clk := &fakeClock{t: t0}

	id := strings.TrimSpace(mustRun(t, clk, "open"))
	mustRun(t, clk.at(time.Minute), "ask", id, "what is a thesis")
	mustRun(t, clk.at(3*time.Minute), "event", id, "activity")
	mustRun(t, clk.at(5*time.Minute), "submit", id)

	first := mustRun(t, clk.at(time.Hour), "score", id, "--json")
	_, err := run(t, clk.at(2*time.Hour), "ask", id, "late question")
	require.Error(t, err)
	mustRun(t, clk, "event", id, "activity")
	assert.JSONEq(t, first, mustRun(t, clk.at(3*time.Hour), "score", id, "--json"))
}

func TestLiveScoreAndUnknownSession(t *testing.T) {
	setupEnv(t)
	clk := &fakeClock{t: t0}

	id := strings.TrimSpace(mustRun(t, clk, "open"))
	out := mustRun(t, clk.at(2*time.Minute), "score", id)
	assert.Contains(t, out, "AI participation:  0%")
	assert.Contains(t, out, "Self-driven:       100%")
	assert.Contains(t, out, "live estimate")

	_, err := run(t, clk, "score", "no-such-session")
	assert.ErrorContains(t, err, "session not found")

	_, err = run(t, clk, "ask", id, "   ")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	dir := setupEnv(t)
	clk := &fakeClock{t: t0}

	out := mustRun(t, clk, "config", "init")
	path := filepath.Join(dir, "config.toml")
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err := run(t, clk, "config", "init")
	assert.ErrorContains(t, err, "already exists")
	mustRun(t, clk, "config", "init", "--force")

	out = mustRun(t, clk, "config", "show")
	assert.Contains(t, out, `provider = "echo"`)
	assert.NoFileExists(t, filepath.Join(dir, "aiaudit.db"))
}

func TestTrackRecordsFileWrites(t *testing.T) {
	dir := setupEnv(t)
	clk := &fakeClock{t: time.Now().Add(-time.Hour)}
	id := strings.TrimSpace(mustRun(t, clk, "open"))

	a := &app{now: time.Now}
	var out bytes.Buffer
	a.out = &out
	require.NoError(t, a.setup(&cobra.Command{}))
	defer a.close()

	doc := filepath.Join(dir, "essay.md")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.track(ctx, id, doc, "") }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(doc, []byte("draft"), 0600)
		return a.metrics.EventsRecorded.Value() > 0
	}, 5*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sess, _, err := a.store.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, doc, sess.FileName())
	var kinds []session.EventKind
	for _, e := range sess.Snapshot().Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, session.EventActivity)
	assert.Contains(t, out.String(), "Recorded ")
}
