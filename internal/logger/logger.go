// Package logger provides the gateway's structured logging singleton.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newDefault(false))
}

func newDefault(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Initialize (re)configures the singleton logger. In debug mode it switches
// to a JSON handler at Debug level so log aggregators can parse it.
func Initialize(debug bool) {
	level := slog.LevelInfo
	var handler slog.Handler
	if debug {
		level = slog.LevelDebug
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	singleton.Store(slog.New(handler))
}

func get() *slog.Logger {
	return singleton.Load()
}

// Debug logs at debug level.
func Debug(msg string) { get().Log(context.Background(), slog.LevelDebug, msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { Debug(fmt.Sprintf(format, args...)) }

// Debugw logs a message with key/value pairs at debug level.
func Debugw(msg string, kv ...any) { get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { Info(fmt.Sprintf(format, args...)) }

// Infow logs a message with key/value pairs at info level.
func Infow(msg string, kv ...any) { get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { get().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { Warn(fmt.Sprintf(format, args...)) }

// Warnw logs a message with key/value pairs at warn level.
func Warnw(msg string, kv ...any) { get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }

// Errorw logs a message with key/value pairs at error level.
func Errorw(msg string, kv ...any) { get().Error(msg, kv...) }

// Panicf logs at error level and then panics with the formatted message.
func Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Error(msg)
	panic(msg)
}
