// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so the caller skips message formatting entirely,
// making disabled logging effectively zero-cost on the frame loop.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.  Accessed atomically so SetLogger
// can be called concurrently with logging from the frame loop.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for elgpu and its driver subpackages.
// By default elgpu produces no log output.  Pass nil to restore the
// default silent behavior.
//
// Log levels used:
//   - [slog.LevelDebug]: per-frame tracing (slot waits, acquires, presents)
//   - [slog.LevelInfo]: lifecycle events (device selected, swapchain recreated)
//   - [slog.LevelWarn]: recoverable surface conditions (out of date, suboptimal)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.  Driver subpackages call this to
// share the same logger configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
