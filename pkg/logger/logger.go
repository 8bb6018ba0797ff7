package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

// New builds a logger writing to out. format is "json" or "console".
func New(out io.Writer, level, format string) *Logger {
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return &Logger{
		zl: zerolog.New(out).Level(lvl).With().Timestamp().Logger(),
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Zerolog returns the underlying structured logger.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Global logger instance
var GlobalLogger = New(os.Stdout, "info", "console")

// Configure replaces the global logger.
func Configure(level, format string) {
	GlobalLogger = New(os.Stdout, level, format)
}

// L returns the global structured logger for call sites that attach fields.
func L() *zerolog.Logger {
	return GlobalLogger.Zerolog()
}

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.Info(format, v...)
}

func Warn(format string, v ...interface{}) {
	GlobalLogger.Warn(format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.Error(format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.Debug(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatal(format, v...)
}
