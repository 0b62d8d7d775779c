package process

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable runtime configuration of a definition. It is
// captured by Define; later changes to the value have no effect.
type Config struct {
	// Listener receives the trace of root invocations.
	Listener Listener
	Logger   Logger
	// RecoverPanics converts panics raised by the body into *PanicError so
	// rescue handlers and listeners see them.
	RecoverPanics bool
	Clock         func() time.Time
}

// DefaultConfig returns a config with a no-op listener, an info level
// stdout logger and panic recovery enabled.
func DefaultConfig() Config {
	return Config{
		Listener:      NopListener{},
		Logger:        NewFmtLogger(nil, LevelInfo),
		RecoverPanics: true,
		Clock:         time.Now,
	}
}

func (c Config) normalized() Config {
	if c.Listener == nil {
		c.Listener = NopListener{}
	}
	c.Logger = normalizeLogger(c.Logger)
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Event log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Settings is the file backed form of the configuration.
type Settings struct {
	LogLevel      string            `yaml:"log_level" koanf:"log_level"`
	RecoverPanics *bool             `yaml:"recover_panics" koanf:"recover_panics"`
	EventLogs     EventLogSettings  `yaml:"event_logs" koanf:"event_logs"`
	Backtrace     BacktraceSettings `yaml:"backtrace" koanf:"backtrace"`
}

// EventLogSettings configures the trace listener.
type EventLogSettings struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Format  string `yaml:"format" koanf:"format"`
}

// BacktraceSettings lists regular expressions of stack lines to drop.
type BacktraceSettings struct {
	Silencers []string `yaml:"silencers" koanf:"silencers"`
}

// ParseSettings reads YAML or JSON settings.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, newError(ErrInvalidDefinition, "parse settings", err, nil)
	}
	return s, s.Validate()
}

// Validate checks the format and the silencer patterns.
func (s Settings) Validate() error {
	switch strings.ToLower(strings.TrimSpace(s.EventLogs.Format)) {
	case "", FormatText, FormatJSON:
	default:
		return newError(ErrInvalidDefinition, fmt.Sprintf("unknown event log format %q", s.EventLogs.Format), nil, map[string]any{
			"format": s.EventLogs.Format,
		})
	}
	for _, pattern := range s.Backtrace.Silencers {
		if _, err := regexp.Compile(pattern); err != nil {
			return newError(ErrInvalidDefinition, fmt.Sprintf("invalid backtrace silencer %q", pattern), err, map[string]any{
				"pattern": pattern,
			})
		}
	}
	return nil
}

// Format returns the normalized event log format, text by default.
func (s Settings) Format() string {
	if f := strings.ToLower(strings.TrimSpace(s.EventLogs.Format)); f != "" {
		return f
	}
	return FormatText
}

// Apply overlays the settings on cfg. The listener is left untouched, it is
// built by the listener packages from the same settings.
func (s Settings) Apply(cfg Config) Config {
	if s.RecoverPanics != nil {
		cfg.RecoverPanics = *s.RecoverPanics
	}
	if level := strings.TrimSpace(s.LogLevel); level != "" {
		switch l := cfg.Logger.(type) {
		case nil:
			cfg.Logger = NewFmtLogger(nil, ParseLevel(level))
		case *FmtLogger:
			cp := *l
			cp.min = ParseLevel(level)
			cfg.Logger = &cp
		}
	}
	return cfg
}
