package logger

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger holds multiple logging backends and dispatches log calls to all of them.
type Logger struct {
	instances []LoggerInstance
}

var singleton *Logger

func getSingleton() *Logger {
	return singleton
}

// Init initializes the global logger with one or more logging backends.
// This must be called before using any logging functions.
func Init(instances ...LoggerInstance) {
	singleton = &Logger{
		instances: instances,
	}
}

// Scoped is a logger that prepends a fixed set of key-value pairs to
// every message. Long-running components use it to tag their output
// with a stable identity such as the queue or engine name.
type Scoped struct {
	keyvals []any
}

// With returns a logger whose messages all carry the given key-value pairs.
func With(keyvals ...any) Scoped {
	return Scoped{keyvals: keyvals}
}

func (s Scoped) merge(keyvals []any) []any {
	if len(s.keyvals) == 0 {
		return keyvals
	}
	merged := make([]any, 0, len(s.keyvals)+len(keyvals))
	merged = append(merged, s.keyvals...)
	merged = append(merged, keyvals...)
	return merged
}

// Debug writes a message at DEBUG level with the scoped pairs attached.
func (s Scoped) Debug(message string, keyvals ...any) {
	Debug(message, s.merge(keyvals)...)
}

// Info writes a message at INFO level with the scoped pairs attached.
func (s Scoped) Info(message string, keyvals ...any) {
	Info(message, s.merge(keyvals)...)
}

// Warn writes a message at WARN level with the scoped pairs attached.
func (s Scoped) Warn(message string, keyvals ...any) {
	Warn(message, s.merge(keyvals)...)
}

// Error writes a message at ERROR level with the scoped pairs attached.
func (s Scoped) Error(message string, keyvals ...any) {
	Error(message, s.merge(keyvals)...)
}

// Log writes a message at the default log level to all configured backends.
func Log(message string, keyvals ...any) {
	logger := getSingleton()
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		instance.Log(message, keyvals...)
	}
}

// Info writes a message at INFO level to all configured backends.
func Info(message string, keyvals ...any) {
	logger := getSingleton()
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		instance.Info(message, keyvals...)
	}
}

// Warn writes a message at WARN level to all configured backends.
func Warn(message string, keyvals ...any) {
	logger := getSingleton()
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		instance.Warn(message, keyvals...)
	}
}

// Error writes a message at ERROR level to all configured backends.
func Error(message string, keyvals ...any) {
	logger := getSingleton()
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		instance.Error(message, keyvals...)
	}
}

// Debug writes a message at DEBUG level to all configured backends.
func Debug(message string, keyvals ...any) {
	logger := getSingleton()
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		instance.Debug(message, keyvals...)
	}
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	logger := getSingleton()
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		instance.Fatal(message, keyvals...)
	}
}
