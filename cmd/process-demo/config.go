package main

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	process "github.com/goliatone/go-process"
)

const envPrefix = "PROCESS_"

type Config struct {
	Process    process.Settings `koanf:"process" yaml:"process"`
	Database   DatabaseConfig   `koanf:"database" yaml:"database"`
	Telemetry  TelemetryConfig  `koanf:"telemetry" yaml:"telemetry"`
	TraceStore TraceStoreConfig `koanf:"trace_store" yaml:"trace_store"`
	Runner     RunnerConfig     `koanf:"runner" yaml:"runner"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" yaml:"driver"`
	DSN    string `koanf:"dsn" yaml:"dsn"`
}

type TelemetryConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Service string `koanf:"service" yaml:"service"`
}

type TraceStoreConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

// RunnerConfig controls retries of interrupted process calls.
type RunnerConfig struct {
	Retries int           `koanf:"retries" yaml:"retries"`
	Backoff time.Duration `koanf:"backoff" yaml:"backoff"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// LoadConfig reads path, when it exists, then PROCESS_ environment
// variables. Nested keys use a double underscore:
// PROCESS_DATABASE__DSN sets database.dsn.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return Config{}, err
	}

	defaults := map[string]any{
		"database.driver":            "sqlite",
		"database.dsn":               "file:process-demo.db?_pragma=foreign_keys(1)",
		"process.event_logs.enabled": true,
		"telemetry.service":          "process-demo",
		"trace_store.enabled":        true,
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Process.Validate()
}
