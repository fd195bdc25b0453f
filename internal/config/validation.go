package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is matched by every ValidationErrors value.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ValidateConfig performs validation of every section.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateScoring(&c.Scoring)...)
	errs = append(errs, validateTracking(&c.Tracking)...)
	errs = append(errs, validateChat(&c.Chat)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if s.Path == "" {
		errs = append(errs, *RequiredFieldError("storage.path"))
	}
	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output includes a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both, discard)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}
	return errs
}

func validateScoring(s *ScoringConfig) ValidationErrors {
	var errs ValidationErrors
	if s.InfluenceWindowMin < 0 || s.InfluenceWindowMin > 120 {
		errs = append(errs, *RangeError("scoring.influence_window_min", 0, 120))
	}
	if s.CollabThreshold < 0 {
		errs = append(errs, ValidationError{
			Field:   "scoring.collab_threshold",
			Message: "threshold cannot be negative",
		})
	}
	if s.IdleGapMin < 0 || s.IdleGapMin > 240 {
		errs = append(errs, *RangeError("scoring.idle_gap_min", 0, 240))
	}
	if s.CollabTagPct < 0 || s.CollabTagPct > 100 {
		errs = append(errs, *RangeError("scoring.collab_tag_pct", 0, 100))
	}
	return errs
}

func validateTracking(t *TrackingConfig) ValidationErrors {
	var errs ValidationErrors
	if t.IdleIntervalSec < 0 || t.IdleIntervalSec > 3600 {
		errs = append(errs, *RangeError("tracking.idle_interval_sec", 0, 3600))
	}
	if t.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "tracking.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}
	if t.MaxEvents < 1 {
		errs = append(errs, ValidationError{
			Field:   "tracking.max_events",
			Message: "max events must be at least 1",
		})
	}
	return errs
}

func validateChat(c *ChatConfig) ValidationErrors {
	var errs ValidationErrors
	switch c.Provider {
	case "gemini":
		if c.Model == "" {
			errs = append(errs, *RequiredFieldError("chat.model"))
		}
	case "echo":
	default:
		errs = append(errs, ValidationError{
			Field:   "chat.provider",
			Message: fmt.Sprintf("invalid provider: %s (valid: gemini, echo)", c.Provider),
		})
	}
	if c.TimeoutSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.timeout_sec",
			Message: "timeout must be at least 1 second",
		})
	}
	if c.MaxOutputTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_output_tokens",
			Message: "max output tokens cannot be negative",
		})
	}
	return errs
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
