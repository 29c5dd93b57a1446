// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// slogExporter writes log records through a slog.Handler. It is used when
// no collector is configured.
type slogExporter struct {
	handler slog.Handler
}

func (e *slogExporter) Export(ctx context.Context, records []sdklog.Record) error {
	for _, rec := range records {
		err := e.handler.Handle(ctx, toSlog(rec))
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *slogExporter) ForceFlush(ctx context.Context) error {
	return nil
}

func (e *slogExporter) Shutdown(ctx context.Context) error {
	return nil
}

// otel severities start at 1 for TRACE and 5 for DEBUG whereas slog
// puts DEBUG at -4.
const severityOffset = log.SeverityDebug - log.Severity(slog.LevelDebug)

func toSlog(rec sdklog.Record) slog.Record {
	sr := slog.NewRecord(
		rec.Timestamp(),
		slog.Level(rec.Severity()-severityOffset),
		rec.Body().AsString(),
		0,
	)

	if scope := rec.InstrumentationScope().Name; scope != "" {
		sr.AddAttrs(slog.String("logger", scope))
	}

	rec.WalkAttributes(func(kv log.KeyValue) bool {
		sr.AddAttrs(slog.Attr{Key: kv.Key, Value: slogValue(kv.Value)})
		return true
	})

	if rec.TraceID().IsValid() {
		sr.AddAttrs(
			slog.String("trace_id", rec.TraceID().String()),
			slog.String("span_id", rec.SpanID().String()),
		)
	}
	return sr
}

func slogValue(v log.Value) slog.Value {
	switch v.Kind() {
	case log.KindBool:
		return slog.BoolValue(v.AsBool())
	case log.KindInt64:
		return slog.Int64Value(v.AsInt64())
	case log.KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case log.KindString:
		return slog.StringValue(v.AsString())
	case log.KindBytes:
		return slog.AnyValue(v.AsBytes())
	case log.KindSlice:
		items := v.AsSlice()
		vals := make([]any, len(items))
		for i, item := range items {
			vals[i] = slogValue(item).Any()
		}
		return slog.AnyValue(vals)
	case log.KindMap:
		kvs := v.AsMap()
		attrs := make([]slog.Attr, len(kvs))
		for i, kv := range kvs {
			attrs[i] = slog.Attr{Key: kv.Key, Value: slogValue(kv.Value)}
		}
		return slog.GroupValue(attrs...)
	default:
		return slog.StringValue(v.String())
	}
}
