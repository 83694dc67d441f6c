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

package logging

import "context"

type nopLogger struct{}

// NewNop returns a Logger that discards everything.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)                         {}
func (nopLogger) Info(string, ...Field)                          {}
func (nopLogger) Warn(string, ...Field)                          {}
func (nopLogger) Error(string, ...Field)                         {}
func (nopLogger) DebugContext(context.Context, string, ...Field) {}
func (nopLogger) InfoContext(context.Context, string, ...Field)  {}
func (nopLogger) WarnContext(context.Context, string, ...Field)  {}
func (nopLogger) ErrorContext(context.Context, string, ...Field) {}
func (n nopLogger) With(...Field) Logger                         { return n }
func (n nopLogger) WithError(error) Logger                       { return n }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return l
}
