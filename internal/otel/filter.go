// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// levelFilter drops records below the minimum severity configured for the
// longest logger name prefix matching their instrumentation scope. Records
// from loggers with no matching prefix always pass.
type levelFilter struct {
	next     sdklog.Processor
	levels   map[string]log.Severity
	prefixes []string
}

func newLevelFilter(next sdklog.Processor, levels map[string]string) *levelFilter {
	f := &levelFilter{
		next:     next,
		levels:   make(map[string]log.Severity, len(levels)),
		prefixes: make([]string, 0, len(levels)),
	}
	for name, lvl := range levels {
		f.levels[name] = severityOf(lvl)
		f.prefixes = append(f.prefixes, name)
	}

	slices.SortFunc(f.prefixes, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})
	return f
}

func severityOf(level string) log.Severity {
	switch strings.ToLower(level) {
	case "info":
		return log.SeverityInfo
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	default:
		return log.SeverityDebug
	}
}

func (f *levelFilter) minimum(scope string) (log.Severity, bool) {
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(scope, prefix) {
			return f.levels[prefix], true
		}
	}
	return 0, false
}

func (f *levelFilter) OnEmit(ctx context.Context, record *sdklog.Record) error {
	lowest, ok := f.minimum(record.InstrumentationScope().Name)
	if ok && record.Severity() < lowest {
		return nil
	}
	return f.next.OnEmit(ctx, record)
}

func (f *levelFilter) Shutdown(ctx context.Context) error {
	return f.next.Shutdown(ctx)
}

func (f *levelFilter) ForceFlush(ctx context.Context) error {
	return f.next.ForceFlush(ctx)
}
