package config

import "strings"

// LogLevel is a log_level value as written in config, env or flags.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// levelAliases maps accepted spellings to their canonical level.
var levelAliases = map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarning,
	"warning": LogLevelWarning,
	"error":   LogLevelError,
}

// Canonical returns the level's canonical spelling and whether it is known.
func (l LogLevel) Canonical() (LogLevel, bool) {
	c, ok := levelAliases[strings.ToLower(strings.TrimSpace(string(l)))]
	return c, ok
}

func (l LogLevel) IsValid() bool {
	_, ok := l.Canonical()
	return ok
}

func (l LogLevel) String() string { return string(l) }
