// Package config provides application configuration management.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-audiometer/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultListen           = "127.0.0.1:8090"
	DefaultIntervalMs       = 50
	DefaultRescanIntervalMs = 5000 // 5 seconds
	DefaultLogLevel         = "info"
)

// validate checks configuration struct tags. Error fields use JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	Listen string `json:"listen" validate:"required,hostname_port"` // HTTP listen address
}

// MeterConfig holds the update loop and device name settings.
type MeterConfig struct {
	IntervalMs       int    `json:"interval_ms" validate:"gte=10,lte=1000"`            // Tick interval
	RescanIntervalMs int    `json:"rescan_interval_ms" validate:"gte=1000,lte=600000"` // Time between discovery passes
	OverridesPath    string `json:"overrides_path" validate:"omitempty,max=4096"`      // Device name file (empty = next to the binary)
	PruneRemoved     bool   `json:"prune_removed"`                                     // Drop devices that disappear
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `json:"level" validate:"oneof=debug info warn error"`
	EventsPath string `json:"events_path" validate:"omitempty,max=4096"` // Device event log (empty = disabled)
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System SystemConfig `json:"system"`
	Meter  MeterConfig  `json:"meter"`
	Log    LogConfig    `json:"log"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{Listen: DefaultListen},
		Meter: MeterConfig{
			IntervalMs:       DefaultIntervalMs,
			RescanIntervalMs: DefaultRescanIntervalMs,
		},
		Log:      LogConfig{Level: DefaultLogLevel},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		slog.Info("creating default config", "path", c.filePath)
		return c.saveLocked()
	}
	if err != nil {
		return util.WrapError("read config", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return util.WrapError("validate config", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag(), e.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Listen == "" {
		c.System.Listen = DefaultListen
	}
	if c.Meter.IntervalMs == 0 {
		c.Meter.IntervalMs = DefaultIntervalMs
	}
	if c.Meter.RescanIntervalMs == 0 {
		c.Meter.RescanIntervalMs = DefaultRescanIntervalMs
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// SetPruneRemoved enables or disables pruning and persists the change.
func (c *Config) SetPruneRemoved(prune bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Meter.PruneRemoved = prune
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	Listen         string
	Interval       time.Duration
	RescanInterval time.Duration
	OverridesPath  string
	PruneRemoved   bool
	LogLevel       slog.Level
	EventsPath     string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Listen:         c.System.Listen,
		Interval:       time.Duration(c.Meter.IntervalMs) * time.Millisecond,
		RescanInterval: time.Duration(c.Meter.RescanIntervalMs) * time.Millisecond,
		OverridesPath:  c.overridesPathLocked(),
		PruneRemoved:   c.Meter.PruneRemoved,
		LogLevel:       ParseLevel(c.Log.Level),
		EventsPath:     c.Log.EventsPath,
	}
}

// RescanTicks converts the rescan interval into a number of ticks, at least one.
func (s *Snapshot) RescanTicks() int {
	if s.Interval <= 0 {
		return 0
	}
	return max(int(s.RescanInterval/s.Interval), 1)
}

// overridesPathLocked returns the configured name file or the default next to the binary.
func (c *Config) overridesPathLocked() string {
	if c.Meter.OverridesPath != "" {
		return c.Meter.OverridesPath
	}
	return DefaultOverridesPath()
}

// DefaultOverridesPath returns the executable path with an .ini suffix,
// or a file in the working directory when the executable path is unknown.
func DefaultOverridesPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "audiometer.ini"
	}
	return exe + ".ini"
}

// ParseLevel maps a configured level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
