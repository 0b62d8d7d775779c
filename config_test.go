package process

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	data := []byte(`
log_level: debug
recover_panics: false
event_logs:
  enabled: true
  format: JSON
backtrace:
  silencers:
    - "^runtime\\."
    - "testing\\.tRunner"
`)

	s, err := ParseSettings(data)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	require.NotNil(t, s.RecoverPanics)
	assert.False(t, *s.RecoverPanics)
	assert.True(t, s.EventLogs.Enabled)
	assert.Equal(t, FormatJSON, s.Format())
	assert.Len(t, s.Backtrace.Silencers, 2)

	cfg := s.Apply(DefaultConfig())
	assert.False(t, cfg.RecoverPanics)
	fl, ok := cfg.Logger.(*FmtLogger)
	require.True(t, ok)
	assert.Equal(t, LevelDebug, fl.min)
}

func TestParseSettingsRejectsInvalid(t *testing.T) {
	_, err := ParseSettings([]byte("event_logs:\n  format: xml\n"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidDefinition, ErrorCode(err))

	_, err = ParseSettings([]byte("backtrace:\n  silencers: ['(']\n"))
	require.Error(t, err)

	_, err = ParseSettings([]byte("log_level: [unterminated"))
	require.Error(t, err)
}

func TestSettingsDefaults(t *testing.T) {
	s, err := ParseSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, FormatText, s.Format())

	cfg := s.Apply(DefaultConfig())
	assert.True(t, cfg.RecoverPanics)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestFmtLoggerFiltersAndCarriesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewFmtLogger(buf, LevelInfo)

	logger.Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	LoggerWithFields(logger.WithContext(context.Background()), map[string]any{"process": "CreateUser", "trace_id": "t1"}).
		Info("started %s", "now")
	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "started now")
	assert.Contains(t, line, "process=CreateUser trace_id=t1")
}

func TestProcessLogsThroughConfiguredLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	def := MustDefine("Logged", finishAs(Success("ok")), WithLogger(NewFmtLogger(buf, LevelDebug)))

	_, err := def.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "process Logged started")
	assert.Contains(t, buf.String(), "invocation_id=0")
}

func TestFmtLoggerZeroValue(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := &FmtLogger{out: buf}

	assert.NotPanics(t, func() {
		logger.Info("plain")
		logger.WithContext(context.Background()).Warn("with %s", "context")
		LoggerWithFields(logger, map[string]any{"k": "v"}).Error("fields")
	})
	assert.Contains(t, buf.String(), "INFO  plain")
	assert.Contains(t, buf.String(), "WARN  with context")
	assert.Contains(t, buf.String(), "fields k=v")
}
