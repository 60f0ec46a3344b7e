package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.Nop()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// LogEvent wraps a zerolog event so callers never import zerolog directly.
type LogEvent struct {
	*zerolog.Event
}

// Init initializes the console logger on stderr. Stdout belongs to the report.
func Init(level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	InitWithWriter(output, level)
}

// InitWithWriter routes all log output to w.
func InitWithWriter(w io.Writer, level string) {
	log = zerolog.New(w).With().Timestamp().Logger()
	SetLogLevel(ParseLevel(level))
}

// ParseLevel maps a configured level name to a LogLevel; unknown names fall back to info.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService guesses whether a service manager started us; timestamps are then
// left to the journal.
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func Debug() *LogEvent { return &LogEvent{log.Debug()} }
func Info() *LogEvent  { return &LogEvent{log.Info()} }
func Warn() *LogEvent  { return &LogEvent{log.Warn()} }
func Error() *LogEvent { return &LogEvent{log.Error()} }

// Fatal exits the process once the event is sent.
func Fatal() *LogEvent { return &LogEvent{log.Fatal()} }

// ErrorWithCode attaches err and, when err carries one, its error_code.
func ErrorWithCode(err error) *LogEvent { return coded(log.Error(), err) }

func WarnWithCode(err error) *LogEvent  { return coded(log.Warn(), err) }
func FatalWithCode(err error) *LogEvent { return coded(log.Fatal(), err) }

func coded(event *zerolog.Event, err error) *LogEvent {
	if code, ok := errors.CodeOf(err); ok {
		event = event.Str("error_code", string(code))
	}
	return &LogEvent{event.Err(err)}
}
