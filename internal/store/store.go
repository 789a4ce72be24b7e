package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/nudge/internal/alert"
)

// NotificationsConfig controls native notification delivery.
type NotificationsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Backend   string `yaml:"backend"`
	SoundName string `yaml:"sound_name,omitempty"`
}

// TriggerConfig controls the external change signal.
type TriggerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	SketchybarPath string `yaml:"sketchybar_path"`
	Event          string `yaml:"event"`
}

// Config holds nudge configuration.
type Config struct {
	Version       string              `yaml:"version"`
	Notifications NotificationsConfig `yaml:"notifications,omitempty"`
	Trigger       TriggerConfig       `yaml:"trigger,omitempty"`
}

// Backends accepted by notifications.backend.
var validBackends = map[string]bool{
	"auto":              true,
	"terminal-notifier": true,
	"osascript":         true,
	"notify-send":       true,
	"none":              true,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		Notifications: NotificationsConfig{
			Enabled:   true,
			Backend:   "auto",
			SoundName: "default",
		},
		Trigger: TriggerConfig{
			Enabled:        true,
			SketchybarPath: "sketchybar",
			Event:          "nudge_changed",
		},
	}
}

// Store represents a loaded nudge home.
type Store struct {
	Home   string
	Config Config
	Env    Env
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// ErrUnavailable is returned when the home directory cannot be created or
// read. It is the same sentinel the alert store uses.
var ErrUnavailable = alert.ErrStorageUnavailable

// ErrInvalidConfig is returned when config.yaml exists but does not parse.
var ErrInvalidConfig = errors.New("invalid config.yaml")

// Load prepares the home directory described by env and reads config.yaml.
// A missing config file is not an error; defaults apply.
func Load(env Env) (*Store, error) {
	home := env.Home
	for _, d := range []string{home, filepath.Join(home, "alerts")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, d, err)
		}
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("cannot read config.yaml: %w", err)
	}
	return &Store{Home: home, Config: cfg, Env: env}, nil
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(s.Path("config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetConfigValue sets a config value by dot-path key (e.g. "trigger.event").
func (s *Store) SetConfigValue(key, value string) error {
	switch key {
	case "notifications.enabled":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("notifications.enabled must be true or false")
		}
		s.Config.Notifications.Enabled = b
	case "notifications.backend":
		if !validBackends[value] {
			return fmt.Errorf("notifications.backend must be one of auto, terminal-notifier, osascript, notify-send, none")
		}
		s.Config.Notifications.Backend = value
	case "notifications.sound_name":
		s.Config.Notifications.SoundName = value
	case "trigger.enabled":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("trigger.enabled must be true or false")
		}
		s.Config.Trigger.Enabled = b
	case "trigger.sketchybar_path":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("trigger.sketchybar_path cannot be empty")
		}
		s.Config.Trigger.SketchybarPath = value
	case "trigger.event":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("trigger.event cannot be empty")
		}
		s.Config.Trigger.Event = value
	default:
		return fmt.Errorf("unknown config key: %s\nValid keys: notifications.enabled, notifications.backend, notifications.sound_name, trigger.enabled, trigger.sketchybar_path, trigger.event", key)
	}
	return s.SaveConfig()
}

// Path resolves a path within the home directory.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// AlertsDir is the directory holding one file per pending alert.
func (s *Store) AlertsDir() string {
	return s.Path("alerts")
}

// CheckHealth verifies home structure and config integrity.
func CheckHealth(home string) []Issue {
	var issues []Issue

	p := filepath.Join(home, "alerts")
	info, err := os.Stat(p)
	if err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("missing directory: %s", p)})
	} else if !info.IsDir() {
		issues = append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", p)})
	}

	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
		}
		return issues
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
		return issues
	}
	if !validBackends[cfg.Notifications.Backend] {
		issues = append(issues, Issue{"warning", fmt.Sprintf("config.yaml: unknown notifications.backend %q", cfg.Notifications.Backend)})
	}
	if cfg.Trigger.Enabled && cfg.Trigger.Event == "" {
		issues = append(issues, Issue{"warning", "config.yaml: trigger.event is empty"})
	}
	return issues
}

// FixIssues attempts to repair simple issues in the home directory.
func FixIssues(home string) []string {
	var fixed []string

	p := filepath.Join(home, "alerts")
	if _, err := os.Stat(p); err != nil {
		if err := os.MkdirAll(p, 0755); err == nil {
			fixed = append(fixed, "recreated missing directory: alerts")
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	if data, err := os.ReadFile(cfgPath); err == nil {
		var raw map[string]interface{}
		if yaml.Unmarshal(data, &raw) != nil {
			cfg := DefaultConfig()
			out, _ := yaml.Marshal(cfg)
			if os.Rename(cfgPath, cfgPath+".invalid") == nil && os.WriteFile(cfgPath, out, 0644) == nil {
				fixed = append(fixed, "replaced invalid config.yaml with defaults (old file kept as config.yaml.invalid)")
			}
		}
	}

	return fixed
}
