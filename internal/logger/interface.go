package logger

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err error) *LogEvent
}

type packageLogger struct{}

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return packageLogger{}
}

func (packageLogger) Debug() *LogEvent                  { return Debug() }
func (packageLogger) Info() *LogEvent                   { return Info() }
func (packageLogger) Warn() *LogEvent                   { return Warn() }
func (packageLogger) Error() *LogEvent                  { return Error() }
func (packageLogger) ErrorWithCode(err error) *LogEvent { return ErrorWithCode(err) }
