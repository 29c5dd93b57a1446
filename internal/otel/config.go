// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import "time"

// Protocol selects how telemetry is sent to an OTLP collector.
type Protocol string

const (
	ProtocolNone Protocol = ""
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http"
)

// Exporter configures where one signal is exported to. No protocol means
// spans and metrics are dropped and log records are written to stdout.
type Exporter struct {
	Protocol Protocol `yaml:"protocol"`
	Target   string   `yaml:"target"`
}

// Config is the telemetry section of the application configuration.
type Config struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`

	Trace struct {
		Exporter      Exporter      `yaml:"exporter"`
		SamplingRatio *float64      `yaml:"sampling_ratio"`
		BatchTimeout  time.Duration `yaml:"batch_timeout"`
	} `yaml:"trace"`

	Metric struct {
		Exporter       Exporter      `yaml:"exporter"`
		ExportInterval time.Duration `yaml:"export_interval"`
	} `yaml:"metric"`

	Log struct {
		Exporter Exporter `yaml:"exporter"`

		// Levels is the minimum level per logger name. A name also applies
		// to every logger it is a prefix of.
		Levels map[string]string `yaml:"levels"`
	} `yaml:"log"`
}
