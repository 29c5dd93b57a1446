// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/log/logtest"
)

func TestInitialize(t *testing.T) {
	t.Run("will succeed", func(t *testing.T) {
		t.Run("if no exporters are configured", func(t *testing.T) {
			shutdown, err := Initialize(context.Background(), Config{ServiceName: "test"})
			require.NoError(t, err)
			require.NoError(t, shutdown(context.Background()))
		})
	})

	t.Run("will return an UnknownProtocolError", func(t *testing.T) {
		t.Run("if the trace protocol is not supported", func(t *testing.T) {
			var cfg Config
			cfg.Trace.Exporter.Protocol = "kafka"

			_, err := Initialize(context.Background(), cfg)

			var perr UnknownProtocolError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, "traces", perr.Signal)
		})

		t.Run("if the log protocol is not supported", func(t *testing.T) {
			var cfg Config
			cfg.Log.Exporter.Protocol = "udp"

			_, err := Initialize(context.Background(), cfg)

			var perr UnknownProtocolError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, "logs", perr.Signal)
		})
	})
}

type recordingProcessor struct {
	emitted []string
}

func (p *recordingProcessor) OnEmit(ctx context.Context, rec *sdklog.Record) error {
	p.emitted = append(p.emitted, rec.Body().AsString())
	return nil
}

func (p *recordingProcessor) Shutdown(ctx context.Context) error { return nil }

func (p *recordingProcessor) ForceFlush(ctx context.Context) error { return nil }

func record(sev log.Severity, scope, body string) *sdklog.Record {
	rec := logtest.RecordFactory{
		Severity:             sev,
		Body:                 log.StringValue(body),
		InstrumentationScope: &instrumentation.Scope{Name: scope},
	}.NewRecord()
	return &rec
}

func TestLevelFilter(t *testing.T) {
	next := &recordingProcessor{}
	f := newLevelFilter(next, map[string]string{
		"github.com/z5labs/tapestry":      "WARN",
		"github.com/z5labs/tapestry/rest": "debug",
	})

	ctx := context.Background()
	records := []*sdklog.Record{
		record(log.SeverityInfo, "github.com/z5labs/tapestry/auth", "dropped"),
		record(log.SeverityError, "github.com/z5labs/tapestry/auth", "kept by prefix"),
		record(log.SeverityDebug, "github.com/z5labs/tapestry/rest", "kept by longer prefix"),
		record(log.SeverityDebug, "example.com/other", "kept without config"),
	}
	for _, rec := range records {
		require.NoError(t, f.OnEmit(ctx, rec))
	}

	require.Equal(t, []string{
		"kept by prefix",
		"kept by longer prefix",
		"kept without config",
	}, next.emitted)
}

func TestSlogExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := &slogExporter{handler: slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})}

	rec := logtest.RecordFactory{
		Severity:             log.SeverityWarn,
		Body:                 log.StringValue("hello"),
		InstrumentationScope: &instrumentation.Scope{Name: "tapestry"},
		Attributes: []log.KeyValue{
			log.Int("status", 401),
			log.Map("route", log.String("method", "GET")),
		},
	}.NewRecord()

	err := exp.Export(context.Background(), []sdklog.Record{rec})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, "WARN", out["level"])
	require.Equal(t, "hello", out["msg"])
	require.Equal(t, "tapestry", out["logger"])
	require.Equal(t, float64(401), out["status"])
	require.Equal(t, map[string]any{"method": "GET"}, out["route"])
	require.NotContains(t, out, "trace_id")
}
