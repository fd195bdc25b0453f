// Package store persists sessions, their activity logs and chat transcripts in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"aiaudit/internal/session"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Store represents the SQLite session store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and runs migrations.
func Open(path string, busyTimeoutMs int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already opened database. The schema must be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateSession inserts a session row and every event of the snapshot.
func (s *Store) CreateSession(ctx context.Context, snap session.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var submit any
	if snap.SubmitTime != nil {
		submit = snap.SubmitTime.UnixMilli()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, start_ms, submit_ms, created_at, file_name)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.StartTime.UnixMilli(), submit, time.Now().UnixNano(), snap.FileName,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, e := range snap.Events {
		if err := insertEvent(ctx, tx, snap.ID, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, x execer, sessionID string, e session.Event) error {
	var tab, intent string
	var textLength int
	if e.Meta != nil {
		tab, textLength, intent = e.Meta.Tab, e.Meta.TextLength, string(e.Meta.Intent)
	}
	if _, err := x.ExecContext(ctx, `
		INSERT INTO events (session_id, kind, time_ms, tab, text_length, intent)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(e.Kind), e.Time.UnixMilli(), tab, textLength, intent,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// AppendEvent stores one more event of a session.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, e session.Event) error {
	return insertEvent(ctx, s.db, sessionID, e)
}

// AppendExchange stores one more chat turn of a session.
func (s *Store) AppendExchange(ctx context.Context, sessionID string, c session.ChatExchange) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (session_id, role, text, time_ms, intent)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(c.Role), c.Text, c.Time.UnixMilli(), string(c.Intent),
	); err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// SetFileName records the submitted file name.
func (s *Store) SetFileName(ctx context.Context, sessionID, name string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET file_name = ? WHERE id = ?", name, sessionID)
	if err != nil {
		return fmt.Errorf("update file name: %w", err)
	}
	return expectOneRow(res, ErrNotFound)
}

// Submit locks a session at t and stores its SUBMIT event. The lock is
// write-once: a locked session yields session.ErrAlreadySubmitted and
// nothing is written.
func (s *Store) Submit(ctx context.Context, sessionID string, t time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET submit_ms = ? WHERE id = ? AND submit_ms IS NULL",
		t.UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", sessionID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return session.ErrAlreadySubmitted
	}

	if err := insertEvent(ctx, tx, sessionID, session.Event{Kind: session.EventSubmit, Time: t}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit: %w", err)
	}
	return nil
}

// LoadSession rebuilds a session and its transcript.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*session.Session, *session.Transcript, error) {
	var (
		startMs  int64
		submitMs sql.NullInt64
		fileName string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT start_ms, submit_ms, file_name FROM sessions WHERE id = ?", sessionID,
	).Scan(&startMs, &submitMs, &fileName)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query session: %w", err)
	}

	events, err := s.loadEvents(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	exchanges, err := s.loadExchanges(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	var submit *time.Time
	if submitMs.Valid {
		t := time.UnixMilli(submitMs.Int64)
		submit = &t
	}
	sess := session.Restore(sessionID, time.UnixMilli(startMs), submit, fileName, events)
	return sess, session.NewTranscript(exchanges...), nil
}

func (s *Store) loadEvents(ctx context.Context, sessionID string) ([]session.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, time_ms, tab, text_length, intent
		FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []session.Event
	for rows.Next() {
		var (
			kind, tab, intent string
			timeMs            int64
			textLength        int
		)
		if err := rows.Scan(&kind, &timeMs, &tab, &textLength, &intent); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e := session.Event{Kind: session.EventKind(kind), Time: time.UnixMilli(timeMs)}
		if tab != "" || textLength != 0 || intent != "" {
			e.Meta = &session.Metadata{Tab: tab, TextLength: textLength, Intent: session.Intent(intent)}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) loadExchanges(ctx context.Context, sessionID string) ([]session.ChatExchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text, time_ms, intent
		FROM exchanges WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []session.ChatExchange
	for rows.Next() {
		var (
			role, text, intent string
			timeMs             int64
		)
		if err := rows.Scan(&role, &text, &timeMs, &intent); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		out = append(out, session.ChatExchange{
			Role:   session.Role(role),
			Text:   text,
			Time:   time.UnixMilli(timeMs),
			Intent: session.Intent(intent),
		})
	}
	return out, rows.Err()
}

// ListSessions returns a summary of every stored session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.start_ms, s.submit_ms, s.file_name,
		       (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id),
		       (SELECT COUNT(*) FROM exchanges x WHERE x.session_id = s.id)
		FROM sessions s
		ORDER BY s.start_ms DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum      Summary
			startMs  int64
			submitMs sql.NullInt64
		)
		if err := rows.Scan(&sum.ID, &startMs, &submitMs, &sum.FileName, &sum.Events, &sum.Exchanges); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartTime = time.UnixMilli(startMs).UTC()
		if submitMs.Valid {
			t := time.UnixMilli(submitMs.Int64).UTC()
			sum.SubmitTime = &t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and everything recorded for it.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return expectOneRow(res, ErrNotFound)
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
