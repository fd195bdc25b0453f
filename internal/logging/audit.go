package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

// Audit event types.
const (
	AuditEventSessionOpen  AuditEventType = "session_open"
	AuditEventExchange     AuditEventType = "exchange"
	AuditEventSubmit       AuditEventType = "submit"
	AuditEventScore        AuditEventType = "score"
	AuditEventExport       AuditEventType = "export"
	AuditEventConfigChange AuditEventType = "config_change"
	AuditEventError        AuditEventType = "error"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType AuditEventType `json:"event_type"`
	Component string         `json:"component"`
	SessionID string         `json:"session_id,omitempty"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	Result    string         `json:"result"` // "success", "failure", "rejected"
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// AuditLoggerConfig holds configuration for the audit logger.
type AuditLoggerConfig struct {
	// FilePath is the path to the audit log file.
	FilePath string

	// MaxSize is the maximum size in MB before rotation.
	MaxSize int

	// MaxAge is the maximum age in days before deletion.
	MaxAge int

	// MaxBackups is the maximum number of rotated files to keep.
	MaxBackups int

	// Compress determines if rotated logs should be compressed.
	Compress bool

	// Component is the component name for audit events.
	Component string
}

// DefaultAuditConfig returns default audit logger configuration.
func DefaultAuditConfig() *AuditLoggerConfig {
	return &AuditLoggerConfig{
		FilePath:   DefaultLogPath("audit.log"),
		MaxSize:    10,
		MaxAge:     365,
		MaxBackups: 10,
		Compress:   true,
		Component:  "aiaudit",
	}
}

// AuditLogger appends JSON-lines records of score-relevant actions.
type AuditLogger struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	component string
	now       func() time.Time
}

// NewAuditLogger opens a rotating audit log file.
func NewAuditLogger(cfg *AuditLoggerConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}
	f, err := newRotatingFile(cfg.FilePath, cfg.MaxSize, cfg.MaxBackups, cfg.MaxAge, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLogger{w: f, closer: f, component: cfg.Component, now: time.Now}, nil
}

// NewAuditWriter returns an audit logger writing to w.
func NewAuditWriter(w io.Writer, component string) *AuditLogger {
	return &AuditLogger{w: w, component: component, now: time.Now}
}

// Log writes an audit event.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = a.now().UTC()
	}
	if event.Component == "" {
		event.Component = a.component
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')
	if _, err := a.w.Write(data); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// LogSessionOpen records that a session was opened.
func (a *AuditLogger) LogSessionOpen(ctx context.Context, sessionID string, start time.Time) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventSessionOpen,
		SessionID: sessionID,
		Action:    "session_opened",
		Result:    "success",
		Details:   map[string]any{"start_ms": start.UnixMilli()},
	})
}

// LogExchange records a completed chat turn without its text.
func (a *AuditLogger) LogExchange(ctx context.Context, sessionID, role, intent string, textLength int) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventExchange,
		SessionID: sessionID,
		Action:    "exchange_recorded",
		Result:    "success",
		Details:   map[string]any{"role": role, "intent": intent, "text_length": textLength},
	})
}

// LogSubmit records a submission attempt. A rejected attempt means the
// session was already locked.
func (a *AuditLogger) LogSubmit(ctx context.Context, sessionID, auditID string, at time.Time, accepted bool) error {
	result := "success"
	if !accepted {
		result = "rejected"
	}
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventSubmit,
		SessionID: sessionID,
		Action:    "session_submitted",
		Resource:  auditID,
		Result:    result,
		Details:   map[string]any{"submit_ms": at.UnixMilli()},
	})
}

// LogScore records a computed score.
func (a *AuditLogger) LogScore(ctx context.Context, sessionID string, details map[string]any) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventScore,
		SessionID: sessionID,
		Action:    "score_computed",
		Result:    "success",
		Details:   details,
	})
}

// LogExport records a report export.
func (a *AuditLogger) LogExport(ctx context.Context, sessionID, outputPath string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventExport,
		SessionID: sessionID,
		Action:    "report_exported",
		Resource:  outputPath,
		Result:    "success",
	})
}

// LogConfigChange records a configuration reload.
func (a *AuditLogger) LogConfigChange(ctx context.Context, setting, oldValue, newValue string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventConfigChange,
		Action:    "config_changed",
		Resource:  setting,
		Result:    "success",
		Details:   map[string]any{"old_value": oldValue, "new_value": newValue},
	})
}

// LogError records a failed operation.
func (a *AuditLogger) LogError(ctx context.Context, sessionID, operation string, err error) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventError,
		SessionID: sessionID,
		Action:    operation,
		Result:    "failure",
		Error:     err.Error(),
	})
}

// Close closes the underlying file, if the logger owns one.
func (a *AuditLogger) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
