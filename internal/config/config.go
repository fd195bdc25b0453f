// Package config handles configuration loading, validation, and management for aiaudit.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"aiaudit/internal/logging"
	"aiaudit/internal/participation"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete aiaudit configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Storage configuration for persistence.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Scoring overrides the participation constants. Zero values keep the defaults.
	Scoring ScoringConfig `toml:"scoring" json:"scoring" yaml:"scoring"`

	// Tracking configuration for activity capture.
	Tracking TrackingConfig `toml:"tracking" json:"tracking" yaml:"tracking"`

	// Chat configuration for the AI assistant.
	Chat ChatConfig `toml:"chat" json:"chat" yaml:"chat"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is how long SQLite waits on a locked database.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`

	// AuditPath is the JSON-lines audit trail. Empty disables it.
	AuditPath string `toml:"audit_path" json:"audit_path" yaml:"audit_path"`
}

// ScoringConfig holds participation scoring overrides.
type ScoringConfig struct {
	InfluenceWindowMin float64 `toml:"influence_window_min" json:"influence_window_min" yaml:"influence_window_min"`
	CollabThreshold    float64 `toml:"collab_threshold" json:"collab_threshold" yaml:"collab_threshold"`
	IdleGapMin         float64 `toml:"idle_gap_min" json:"idle_gap_min" yaml:"idle_gap_min"`
	CollabTagPct       int     `toml:"collab_tag_pct" json:"collab_tag_pct" yaml:"collab_tag_pct"`
}

// TrackingConfig holds activity tracking configuration.
type TrackingConfig struct {
	// IdleIntervalSec is the minimum spacing between recorded ACTIVITY events.
	IdleIntervalSec int `toml:"idle_interval_sec" json:"idle_interval_sec" yaml:"idle_interval_sec"`

	// DebounceMs coalesces bursts of file writes into one activity signal.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// MaxEvents caps the activity log of one session.
	MaxEvents int `toml:"max_events" json:"max_events" yaml:"max_events"`
}

// ChatConfig holds AI assistant configuration.
type ChatConfig struct {
	// Provider is "gemini" or "echo".
	Provider string `toml:"provider" json:"provider" yaml:"provider"`

	// Model is the Gemini model identifier.
	Model string `toml:"model" json:"model" yaml:"model"`

	// APIKey is read from AIAUDIT_GEMINI_API_KEY or GEMINI_API_KEY when empty.
	APIKey string `toml:"api_key" json:"api_key" yaml:"api_key"`

	// TimeoutSec bounds a single model call.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`

	// MaxOutputTokens bounds the length of a reply.
	MaxOutputTokens int `toml:"max_output_tokens" json:"max_output_tokens" yaml:"max_output_tokens"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		Version: Version,
		Storage: StorageConfig{
			Path:          filepath.Join(dir, "aiaudit.db"),
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "logs", "aiaudit.log"),
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
			AuditPath:  filepath.Join(dir, "logs", "audit.log"),
		},
		Tracking: TrackingConfig{
			IdleIntervalSec: 10,
			DebounceMs:      500,
			MaxEvents:       100_000,
		},
		Chat: ChatConfig{
			Provider:        "gemini",
			Model:           "gemini-2.0-flash",
			TimeoutSec:      60,
			MaxOutputTokens: 1024,
		},
	}
}

// DataDir returns the base aiaudit directory, honoring AIAUDIT_DATA_DIR.
func DataDir() string {
	if envDir := os.Getenv("AIAUDIT_DATA_DIR"); envDir != "" {
		return envDir
	}
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "aiaudit")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "aiaudit")
	}
	return filepath.Join(homeDir, ".local", "share", "aiaudit")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file yields the defaults.
// TOML, JSON and YAML are recognized by file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	return cfg, nil
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with AIAUDIT_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("AIAUDIT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("AIAUDIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AIAUDIT_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("AIAUDIT_CHAT_PROVIDER"); v != "" {
		c.Chat.Provider = v
	}
	if v := os.Getenv("AIAUDIT_CHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}

	// Credentials from env only override an empty file value.
	if c.Chat.APIKey == "" {
		for _, name := range []string{"AIAUDIT_GEMINI_API_KEY", "GEMINI_API_KEY"} {
			if v := os.Getenv(name); v != "" {
				c.Chat.APIKey = v
				break
			}
		}
	}
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Storage.Path)}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	if c.Logging.AuditPath != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.AuditPath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ScoringParams converts the scoring section into participation parameters.
func (c *Config) ScoringParams() participation.Params {
	p := participation.DefaultParams()
	s := c.Scoring
	if s.InfluenceWindowMin > 0 {
		p.InfluenceWindow = time.Duration(s.InfluenceWindowMin * float64(time.Minute))
	}
	if s.CollabThreshold > 0 {
		p.CollabThreshold = s.CollabThreshold
	}
	if s.IdleGapMin > 0 {
		p.IdleGap = time.Duration(s.IdleGapMin * float64(time.Minute))
	}
	if s.CollabTagPct > 0 {
		p.CollabTagPct = s.CollabTagPct
	}
	return p
}

// LoggerConfig converts the logging section into a logger configuration.
// The section must have passed validation.
func (c *Config) LoggerConfig() *logging.Config {
	lc := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(c.Logging.Level); err == nil {
		lc.Level = lvl
	}
	if f, err := logging.ParseFormat(c.Logging.Format); err == nil {
		lc.Format = f
	}
	lc.Output = c.Logging.Output
	lc.FilePath = c.Logging.FilePath
	lc.MaxSize = c.Logging.MaxSizeMB
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAge = c.Logging.MaxAgeDays
	lc.Compress = c.Logging.Compress
	return lc
}

// IdleInterval returns the tracking idle interval as a duration.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Tracking.IdleIntervalSec) * time.Second
}

// Debounce returns the tracking debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Tracking.DebounceMs) * time.Millisecond
}

// ChatTimeout returns the chat call timeout as a duration.
func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Chat.TimeoutSec) * time.Second
}
