// Package logging wraps zerolog with the events the conversion pipeline emits.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dicomconvert/internal/models"
)

// Logger wraps zerolog for structured logging
type Logger struct {
	logger zerolog.Logger
}

// New creates a JSON logger writing to output at the given level.
// A nil output means stderr; an unknown level means info.
func New(output io.Writer, level string) *Logger {
	if output == nil {
		output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
	return &Logger{logger: logger}
}

// NewConsole creates a human-readable logger for interactive use
func NewConsole(level string) *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, level)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// ParseLevel maps a config string onto a zerolog level
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithComponent adds a component field to every event
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", component).Logger()}
}

// WithRun adds the run identifier to every event
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{logger: l.logger.With().Str("run_id", runID).Logger()}
}

// WithFile adds file context
func (l *Logger) WithFile(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("file", name).Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs and exits
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// RunStarted logs the start of a batch
func (l *Logger) RunStarted(inputDir, outputDir string, files int) {
	l.logger.Info().
		Str("input_dir", inputDir).
		Str("output_dir", outputDir).
		Int("files", files).
		Msg("conversion run started")
}

// Outcome logs one file's result at a level matching its status
func (l *Logger) Outcome(o models.Outcome, elapsed time.Duration) {
	var ev *zerolog.Event
	switch o.Status {
	case models.StatusConverted:
		ev = l.logger.Info().Str("output", o.OutputPath)
	case models.StatusSkipped:
		ev = l.logger.Info().Str("reason", string(o.Reason))
	default:
		ev = l.logger.Warn().Str("error", o.Detail)
	}
	ev.Str("file", o.SourceName).
		Str("status", string(o.Status)).
		Dur("elapsed", elapsed).
		Msg("file processed")
}

// RunCompleted logs the run summary. The run id comes from WithRun.
func (l *Logger) RunCompleted(s *models.Summary) {
	l.logger.Info().
		Int("converted", s.Converted).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Float64("duration_seconds", s.Duration.Seconds()).
		Msg("conversion run completed")
}
