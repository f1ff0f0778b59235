// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"log/slog"

	"go.uber.org/zap"
)

// Logger is the logging sink the Allocator threads through every
// Algorithm's Run, mirroring the teacher's *slog.Logger "traceLog"
// argument, but kept as a narrow interface so callers already on zap
// don't need to adapt to slog's concrete type (spec §6).
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger. slog has no trace level, so
// Trace is routed to Debug.
func NewSlogLogger(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

func (s slogLogger) Trace(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger adapts a *zap.SugaredLogger (the teacher's own
// structured-logging dependency). Trace is routed to Debug, since zap
// has no trace level either.
func NewZapLogger(l *zap.SugaredLogger) Logger {
	return zapLogger{l: l}
}

func (z zapLogger) Trace(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z zapLogger) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }

type nopLogger struct{}

// NopLogger discards everything; used by tests and callers that don't
// want logging.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Trace(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
