package process

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// PanicError is a panic recovered from a process body, converted into an
// error so it can flow through rescue handlers and trace listeners.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return fmt.Sprintf("panic: %v", err)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(value any) *PanicError {
	stack := make([]byte, 8096)
	n := runtime.Stack(stack, false)
	return &PanicError{Value: value, Stack: cleanStackTrace(stack[:n])}
}

// cleanStackTrace drops the frames up to and including the panic call.
func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	panicLineIndex := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "panic(") {
			panicLineIndex = i
			break
		}
	}

	// the panic() call line is followed by its file reference line
	if panicLineIndex >= 0 && panicLineIndex+2 < len(lines) {
		lines = lines[panicLineIndex+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}

// BacktraceCleaner filters stack lines, in the manner of a backtrace
// silencer. A frame is a function line plus its file line; a frame is
// dropped when either line matches a silencer.
type BacktraceCleaner struct {
	silencers []*regexp.Regexp
}

// NewBacktraceCleaner compiles the silencer patterns.
func NewBacktraceCleaner(patterns ...string) (*BacktraceCleaner, error) {
	c := &BacktraceCleaner{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, newError(ErrInvalidDefinition, fmt.Sprintf("invalid backtrace silencer %q", p), err, nil)
		}
		c.silencers = append(c.silencers, re)
	}
	return c, nil
}

// Clean returns the kept frames as "function at file:line" strings.
func (c *BacktraceCleaner) Clean(stack []byte) []string {
	lines := strings.Split(strings.TrimSpace(string(stack)), "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "goroutine ") {
			continue
		}
		fileLine := ""
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
			fileLine = strings.TrimSpace(lines[i+1])
			i++
		}
		if c.silenced(line) || c.silenced(fileLine) {
			continue
		}
		if fileLine != "" {
			out = append(out, line+" at "+fileLine)
		} else {
			out = append(out, line)
		}
	}
	return out
}

func (c *BacktraceCleaner) silenced(line string) bool {
	if c == nil || line == "" {
		return false
	}
	for _, re := range c.silencers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
