// Package log provides simple leveled logging for the record server.
//
// Messages are written with a colored level prefix. Debug output is only
// emitted in verbose mode. Errors go to stderr unless an explicit output
// has been set with SetOutput.
//
//	log.Infof("listening on %s", addr)
//	log.SetVerbose(true)
//	log.Debugf("store opened: %s", path)
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var (
	mu       sync.Mutex
	verbose  = false
	disabled = false
	output   io.Writer // nil means stdout/stderr split
	prefixes = map[int]string{
		levelDebug: "\033[37m[DBG]\033[0m",
		levelInfo:  "\033[36m[INF]\033[0m",
		levelWarn:  "\033[33m[WRN]\033[0m",
		levelError: "\033[31m[ERR]\033[0m",
	}
)

// SetVerbose enables or disables debug messages.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// IsVerbose reports whether debug messages are enabled.
func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetDisabled turns all logging off or back on.
func SetDisabled(d bool) {
	mu.Lock()
	disabled = d
	mu.Unlock()
}

// SetOutput sends every level to w. Passing nil restores the default
// stdout/stderr split.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// Debugf logs a debug message if verbose is true.
func Debugf(format string, args ...any) {
	logMessage(levelDebug, format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...any) {
	logMessage(levelInfo, format, args...)
}

// Warnf logs a warning message.
func Warnf(format string, args ...any) {
	logMessage(levelWarn, format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...any) {
	logMessage(levelError, format, args...)
}

// Fatalf logs an error message and exits the program.
func Fatalf(format string, args ...any) {
	logMessage(levelError, format, args...)
	os.Exit(1)
}

func logMessage(level int, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if disabled || (level == levelDebug && !verbose) {
		return
	}
	line := prefixes[level] + " " + fmt.Sprintf(format, args...) + "\n"

	w := output
	if w == nil {
		w = os.Stdout
		if level == levelError {
			w = os.Stderr
		}
	}
	_, _ = io.WriteString(w, line)
}
