// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"context"
	"sync/atomic"

	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
)

// swapLogger forwards to a logger that a reload may replace. Loggers
// derived with With keep forwarding, so components pick up a new level or
// format without being rebuilt.
type swapLogger struct {
	current atomic.Pointer[loggerRef]
	fields  []logging.Field
	root    *swapLogger
}

type loggerRef struct{ logging.Logger }

func newSwapLogger(l logging.Logger) *swapLogger {
	s := &swapLogger{}
	s.root = s
	s.current.Store(&loggerRef{l})
	return s
}

// Swap replaces the underlying logger of the root and every derived logger.
func (s *swapLogger) Swap(l logging.Logger) {
	s.root.current.Store(&loggerRef{l})
}

func (s *swapLogger) target() logging.Logger {
	l := s.root.current.Load().Logger
	if len(s.fields) > 0 {
		return l.With(s.fields...)
	}
	return l
}

func (s *swapLogger) Debug(msg string, f ...logging.Field) { s.target().Debug(msg, f...) }
func (s *swapLogger) Info(msg string, f ...logging.Field)  { s.target().Info(msg, f...) }
func (s *swapLogger) Warn(msg string, f ...logging.Field)  { s.target().Warn(msg, f...) }
func (s *swapLogger) Error(msg string, f ...logging.Field) { s.target().Error(msg, f...) }

func (s *swapLogger) DebugContext(ctx context.Context, msg string, f ...logging.Field) {
	s.target().DebugContext(ctx, msg, f...)
}

func (s *swapLogger) InfoContext(ctx context.Context, msg string, f ...logging.Field) {
	s.target().InfoContext(ctx, msg, f...)
}

func (s *swapLogger) WarnContext(ctx context.Context, msg string, f ...logging.Field) {
	s.target().WarnContext(ctx, msg, f...)
}

func (s *swapLogger) ErrorContext(ctx context.Context, msg string, f ...logging.Field) {
	s.target().ErrorContext(ctx, msg, f...)
}

func (s *swapLogger) With(fields ...logging.Field) logging.Logger {
	return &swapLogger{
		fields: append(append([]logging.Field(nil), s.fields...), fields...),
		root:   s.root,
	}
}

func (s *swapLogger) WithError(err error) logging.Logger {
	return s.With(logging.Error(err))
}
