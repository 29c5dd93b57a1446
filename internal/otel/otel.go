// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otel installs the global OpenTelemetry providers.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/z5labs/tapestry/concurrent"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// UnknownProtocolError is returned for an exporter protocol other than
// grpc or http.
type UnknownProtocolError struct {
	Signal   string
	Protocol Protocol
}

func (e UnknownProtocolError) Error() string {
	return fmt.Sprintf("unknown otlp protocol for %s: %q", e.Signal, e.Protocol)
}

// ShutdownFunc flushes and stops every provider installed by [Initialize].
type ShutdownFunc func(context.Context) error

type initializer struct {
	cfg   Config
	res   *resource.Resource
	conns *concurrent.Cache[string, *grpc.ClientConn]

	shutdowns []ShutdownFunc
}

// Initialize installs the global propagator and the tracer, meter and
// logger providers described by cfg. Providers already installed are
// shut down again if a later one fails.
func Initialize(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	res, err := detectResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	in := &initializer{
		cfg:   cfg,
		res:   res,
		conns: concurrent.NewCache[string, *grpc.ClientConn](),
	}
	for _, f := range []func(context.Context) error{in.traces, in.metrics, in.logs} {
		err := f(ctx)
		if err != nil {
			return nil, errors.Join(err, in.shutdown(ctx))
		}
	}
	return in.shutdown, nil
}

func (in *initializer) shutdown(ctx context.Context) error {
	var errs []error
	for _, f := range in.shutdowns {
		errs = append(errs, f(ctx))
	}

	in.conns.Range(func(target string, cc *grpc.ClientConn) {
		errs = append(errs, cc.Close())
	})
	return errors.Join(errs...)
}

func (in *initializer) conn(target string) (*grpc.ClientConn, error) {
	return in.conns.GetOr(target, func() (*grpc.ClientConn, error) {
		return grpc.NewClient(
			target,
			// TODO: support TLS transport credentials for collectors outside the cluster
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	})
}

func (in *initializer) traces(ctx context.Context) error {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	e := in.cfg.Trace.Exporter
	switch e.Protocol {
	case ProtocolNone:
		return nil
	case ProtocolGRPC:
		var cc *grpc.ClientConn
		cc, err = in.conn(e.Target)
		if err != nil {
			return err
		}
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(cc))
	case ProtocolHTTP:
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(e.Target))
	default:
		return UnknownProtocolError{Signal: "traces", Protocol: e.Protocol}
	}
	if err != nil {
		return err
	}

	ratio := 1.0
	if in.cfg.Trace.SamplingRatio != nil {
		ratio = *in.cfg.Trace.SamplingRatio
	}

	var batchOpts []sdktrace.BatchSpanProcessorOption
	if in.cfg.Trace.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(in.cfg.Trace.BatchTimeout))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, batchOpts...),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(in.res),
	)
	otel.SetTracerProvider(tp)
	in.shutdowns = append(in.shutdowns, tp.Shutdown)
	return nil
}

func (in *initializer) metrics(ctx context.Context) error {
	var (
		exp sdkmetric.Exporter
		err error
	)
	e := in.cfg.Metric.Exporter
	switch e.Protocol {
	case ProtocolNone:
		return nil
	case ProtocolGRPC:
		var cc *grpc.ClientConn
		cc, err = in.conn(e.Target)
		if err != nil {
			return err
		}
		exp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(cc))
	case ProtocolHTTP:
		exp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(e.Target))
	default:
		return UnknownProtocolError{Signal: "metrics", Protocol: e.Protocol}
	}
	if err != nil {
		return err
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{
		sdkmetric.WithProducer(runtime.NewProducer()),
	}
	if in.cfg.Metric.ExportInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(in.cfg.Metric.ExportInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		sdkmetric.WithResource(in.res),
	)
	otel.SetMeterProvider(mp)
	in.shutdowns = append(in.shutdowns, mp.Shutdown)

	return runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second))
}

func (in *initializer) logs(ctx context.Context) error {
	var processor sdklog.Processor
	e := in.cfg.Log.Exporter
	switch e.Protocol {
	case ProtocolNone:
		processor = sdklog.NewSimpleProcessor(&slogExporter{
			handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}),
		})
	case ProtocolGRPC:
		cc, err := in.conn(e.Target)
		if err != nil {
			return err
		}
		exp, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(cc))
		if err != nil {
			return err
		}
		processor = sdklog.NewBatchProcessor(exp)
	case ProtocolHTTP:
		exp, err := otlploghttp.New(ctx, otlploghttp.WithEndpoint(e.Target))
		if err != nil {
			return err
		}
		processor = sdklog.NewBatchProcessor(exp)
	default:
		return UnknownProtocolError{Signal: "logs", Protocol: e.Protocol}
	}

	if len(in.cfg.Log.Levels) > 0 {
		processor = newLevelFilter(processor, in.cfg.Log.Levels)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(processor),
		sdklog.WithResource(in.res),
	)
	global.SetLoggerProvider(lp)
	in.shutdowns = append(in.shutdowns, lp.Shutdown)
	return nil
}

func detectResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "unknown_service:go"
		if exe, err := os.Executable(); err == nil {
			name = "unknown_service:" + filepath.Base(exe)
		}
	}

	return resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}
