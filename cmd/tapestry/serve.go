// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/z5labs/tapestry/app"
	"github.com/z5labs/tapestry/config"
	"github.com/z5labs/tapestry/example/petstore"
	"github.com/z5labs/tapestry/example/petstore/pet"
	"github.com/z5labs/tapestry/health"
	tapestryhttp "github.com/z5labs/tapestry/http"
	"github.com/z5labs/tapestry/internal/otel"
	"github.com/z5labs/tapestry/metadata"
	"github.com/z5labs/tapestry/openapi"
	"github.com/z5labs/tapestry/rest"

	"github.com/spf13/cobra"
)

// Config is the YAML configuration of the serve command. The file is
// rendered as a text/template first so values can come from the
// environment, e.g. {{env "SIGNING_KEY"}}.
type Config struct {
	HTTP struct {
		Addr              string        `yaml:"addr"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		IdleTimeout       time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Auth struct {
		SigningKey string            `yaml:"signing_key"`
		AdminKeys  map[string]string `yaml:"admin_keys"`
	} `yaml:"auth"`

	ValidateResponses bool `yaml:"validate_responses"`

	OTel otel.Config `yaml:"otel"`
}

// MissingSigningKeyError is returned when no token signing key is
// configured.
type MissingSigningKeyError struct{}

func (MissingSigningKeyError) Error() string {
	return "auth.signing_key must be set"
}

func newServeCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the petstore API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := config.Template(config.File(config.ReaderOf(path)))
			if path == "" {
				src = config.ReaderOf[io.Reader](strings.NewReader(""))
			}
			return app.Run(cmd.Context(), build(config.UnmarshalYAML[Config](src)))
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "path to the YAML config file")
	return cmd
}

func build(cfgReader config.Reader[Config]) app.Builder[app.Runtime] {
	return app.WithLifecycle(func(ctx context.Context, lc *app.Lifecycle) (*tapestryhttp.App, error) {
		cfg, err := config.Read(ctx, cfgReader)
		if err != nil {
			return nil, err
		}
		if cfg.Auth.SigningKey == "" {
			return nil, MissingSigningKeyError{}
		}

		shutdown, err := otel.Initialize(ctx, cfg.OTel)
		if err != nil {
			return nil, err
		}
		lc.OnStop(app.Hook(shutdown))

		ready := health.Healthy()
		lc.OnStop(func(context.Context) error {
			ready.MarkUnhealthy()
			return nil
		})

		srv := tapestryhttp.NewServer(
			tapestryhttp.Addr(nonZero(cfg.HTTP.Addr)),
			tapestryhttp.ReadTimeout(nonZero(cfg.HTTP.ReadTimeout)),
			tapestryhttp.ReadHeaderTimeout(nonZero(cfg.HTTP.ReadHeaderTimeout)),
			tapestryhttp.WriteTimeout(nonZero(cfg.HTTP.WriteTimeout)),
			tapestryhttp.IdleTimeout(nonZero(cfg.HTTP.IdleTimeout)),
			tapestryhttp.ShutdownTimeout(nonZero(cfg.HTTP.ShutdownTimeout)),
			tapestryhttp.FromEnv(),
		)

		api := app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
			return newApi(cfg, ready)
		})
		return tapestryhttp.Build(srv, api).Build(ctx)
	})
}

func newApi(cfg Config, ready health.Monitor) (*rest.Api, error) {
	store := metadata.NewStore()
	err := petstore.Declare(store)
	if err != nil {
		return nil, err
	}

	reg, err := petstore.Authenticators([]byte(cfg.Auth.SigningKey), cfg.Auth.AdminKeys)
	if err != nil {
		return nil, err
	}

	b, err := openapi.Assemble(store, petstore.Info, reg, petstore.Controller(pet.NewStore()))
	if err != nil {
		return nil, err
	}

	return rest.NewApi(
		b,
		rest.Authenticators(reg),
		rest.ValidateResponses(cfg.ValidateResponses),
		rest.Readiness(ready),
	)
}

func nonZero[T comparable](v T) config.Reader[T] {
	var zero T
	if v == zero {
		return config.EmptyReader[T]()
	}
	return config.ReaderOf(v)
}
