package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with the map-based field API used across the service.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger for the given environment writing to stdout.
// Development gets colored console output at debug level; every other
// environment gets JSON at info level.
func New(env string) *Logger {
	var output io.Writer = os.Stdout
	if env == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	level := zerolog.InfoLevel
	if env == "development" {
		level = zerolog.DebugLevel
	}

	return NewWithOutput(output, level)
}

// NewWithOutput creates a JSON Logger writing to w at the given level.
func NewWithOutput(w io.Writer, level zerolog.Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	zlog := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "zoning-engine").
		Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	withFields(l.zlog.Debug(), fields).Msg(msg)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	withFields(l.zlog.Info(), fields).Msg(msg)
}

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	withFields(l.zlog.Warn(), fields).Msg(msg)
}

// Error logs an error message with an error and optional fields.
func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	withFields(l.zlog.Error().Err(err), fields).Msg(msg)
}

// Fatal logs a fatal message and exits the application.
func (l *Logger) Fatal(msg string, err error, fields map[string]interface{}) {
	withFields(l.zlog.Fatal().Err(err), fields).Msg(msg)
}

// With creates a child logger with additional context fields.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithRequestID creates a child logger with a request ID field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("request_id", requestID).Logger()}
}

// WithCorrelationID creates a child logger tagged with an analysis correlation id.
func (l *Logger) WithCorrelationID(correlationID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("correlation_id", correlationID).Logger()}
}

// WithLevel returns a copy of the logger filtering below level.
func (l *Logger) WithLevel(level zerolog.Level) *Logger {
	return &Logger{zlog: l.zlog.Level(level)}
}

// GetZerolog returns the underlying zerolog.Logger for advanced usage.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

func withFields(event *zerolog.Event, fields map[string]interface{}) *zerolog.Event {
	for key, value := range fields {
		event = event.Interface(key, value)
	}
	return event
}
