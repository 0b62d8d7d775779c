package eventlog

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-logger/glog"

	process "github.com/goliatone/go-process"
)

// FromGlog adapts a go-logger logger to process.Logger. Messages are
// formatted printf style before they reach glog.
func FromGlog(logger glog.Logger) process.Logger {
	if logger == nil {
		return process.NewFmtLogger(nil, process.LevelInfo)
	}
	return glogLogger{logger: logger}
}

type glogLogger struct {
	logger glog.Logger
}

func (l glogLogger) Trace(msg string, args ...any) { l.logger.Trace(format(msg, args)) }
func (l glogLogger) Debug(msg string, args ...any) { l.logger.Debug(format(msg, args)) }
func (l glogLogger) Info(msg string, args ...any)  { l.logger.Info(format(msg, args)) }
func (l glogLogger) Warn(msg string, args ...any)  { l.logger.Warn(format(msg, args)) }
func (l glogLogger) Error(msg string, args ...any) { l.logger.Error(format(msg, args)) }
func (l glogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(format(msg, args)) }

func (l glogLogger) WithContext(ctx context.Context) process.Logger {
	return glogLogger{logger: l.logger.WithContext(ctx)}
}

func (l glogLogger) WithFields(fields map[string]any) process.Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// NewJSONLogger builds a glog JSON logger at the given level.
func NewJSONLogger(w io.Writer, level string) process.Logger {
	if level == "" {
		level = "info"
	}
	return FromGlog(glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
	))
}
