package eventlog

import (
	"io"
	"os"

	process "github.com/goliatone/go-process"
)

// FromSettings builds the listener described by the event log settings:
// a NopListener when disabled, plain text lines for the text format and
// glog JSON records for the json format.
func FromSettings(s process.Settings, w io.Writer) (process.Listener, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !s.EventLogs.Enabled {
		return process.NopListener{}, nil
	}

	if w == nil {
		w = os.Stdout
	}

	cleaner, err := process.NewBacktraceCleaner(s.Backtrace.Silencers...)
	if err != nil {
		return nil, err
	}

	if s.Format() == process.FormatJSON {
		return NewBasicLoggerListener(
			WithLogger(NewJSONLogger(w, "info")),
			WithBacktraceCleaner(cleaner),
		), nil
	}
	return NewBasicLoggerListener(WithWriter(w), WithBacktraceCleaner(cleaner)), nil
}
