// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http runs an [http.Handler] as an [app.Runtime] with graceful
// shutdown.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/tapestry"
	"github.com/z5labs/tapestry/app"
	"github.com/z5labs/tapestry/config"

	"github.com/sourcegraph/conc/pool"
)

// Server configures the listener and timeouts of an [App]. Unset readers
// fall back to the defaults documented on each option.
type Server struct {
	Addr              config.Reader[string]
	ReadTimeout       config.Reader[time.Duration]
	ReadHeaderTimeout config.Reader[time.Duration]
	WriteTimeout      config.Reader[time.Duration]
	IdleTimeout       config.Reader[time.Duration]
	ShutdownTimeout   config.Reader[time.Duration]
	MaxHeaderBytes    config.Reader[int]
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// Addr sets the TCP address to listen on. Defaults to ":8080".
func Addr(r config.Reader[string]) ServerOption {
	return func(s *Server) {
		s.Addr = r
	}
}

// ReadTimeout bounds reading a whole request. Defaults to 5s.
func ReadTimeout(r config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.ReadTimeout = r
	}
}

// ReadHeaderTimeout bounds reading request headers. Defaults to 2s.
func ReadHeaderTimeout(r config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.ReadHeaderTimeout = r
	}
}

// WriteTimeout bounds writing a response. Defaults to 10s.
func WriteTimeout(r config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.WriteTimeout = r
	}
}

// IdleTimeout bounds keep-alive idle time. Defaults to 120s.
func IdleTimeout(r config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.IdleTimeout = r
	}
}

// ShutdownTimeout bounds draining in-flight requests. Defaults to 15s.
func ShutdownTimeout(r config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.ShutdownTimeout = r
	}
}

// MaxHeaderBytes limits the size of request headers. Defaults to 1MiB.
func MaxHeaderBytes(r config.Reader[int]) ServerOption {
	return func(s *Server) {
		s.MaxHeaderBytes = r
	}
}

// FromEnv reads any setting not configured otherwise from the
// TAPESTRY_HTTP_* environment variables.
func FromEnv() ServerOption {
	return func(s *Server) {
		s.Addr = config.Or(s.Addr, config.Env("TAPESTRY_HTTP_ADDR"))
		s.ReadTimeout = config.Or(s.ReadTimeout, config.DurationFromString(config.Env("TAPESTRY_HTTP_READ_TIMEOUT")))
		s.ReadHeaderTimeout = config.Or(s.ReadHeaderTimeout, config.DurationFromString(config.Env("TAPESTRY_HTTP_READ_HEADER_TIMEOUT")))
		s.WriteTimeout = config.Or(s.WriteTimeout, config.DurationFromString(config.Env("TAPESTRY_HTTP_WRITE_TIMEOUT")))
		s.IdleTimeout = config.Or(s.IdleTimeout, config.DurationFromString(config.Env("TAPESTRY_HTTP_IDLE_TIMEOUT")))
		s.ShutdownTimeout = config.Or(s.ShutdownTimeout, config.DurationFromString(config.Env("TAPESTRY_HTTP_SHUTDOWN_TIMEOUT")))
		s.MaxHeaderBytes = config.Or(s.MaxHeaderBytes, config.IntFromString(config.Env("TAPESTRY_HTTP_MAX_HEADER_BYTES")))
	}
}

// NewServer initializes a [Server].
func NewServer(opts ...ServerOption) Server {
	var s Server
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// App serves a handler on a bound listener.
type App struct {
	log             *slog.Logger
	ln              net.Listener
	srv             *http.Server
	shutdownTimeout time.Duration
}

// Addr returns the address the listener is bound to.
func (a *App) Addr() net.Addr {
	return a.ln.Addr()
}

// Run serves requests until ctx is cancelled and then drains in-flight
// requests for at most the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		a.log.InfoContext(ctx, "serving http", slog.String("addr", a.ln.Addr().String()))

		err := a.srv.Serve(a.ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
		defer cancel()

		a.log.InfoContext(shutdownCtx, "shutting down http server")
		return a.srv.Shutdown(shutdownCtx)
	})

	return p.Wait()
}

// Build returns a [app.Builder] which binds the listener of srv and serves
// the handler built by h on it.
func Build(srv Server, h app.Builder[http.Handler]) app.Builder[*App] {
	return app.Bind(h, func(handler http.Handler) app.Builder[*App] {
		return app.BuilderFunc[*App](func(ctx context.Context) (*App, error) {
			return newApp(ctx, srv, handler)
		})
	})
}

func newApp(ctx context.Context, s Server, h http.Handler) (*App, error) {
	var err error
	read := func(def time.Duration, r config.Reader[time.Duration]) time.Duration {
		if err != nil {
			return def
		}
		var d time.Duration
		d, err = config.Read(ctx, config.Default(def, r))
		return d
	}

	srv := &http.Server{
		Handler:           h,
		ReadTimeout:       read(5*time.Second, s.ReadTimeout),
		ReadHeaderTimeout: read(2*time.Second, s.ReadHeaderTimeout),
		WriteTimeout:      read(10*time.Second, s.WriteTimeout),
		IdleTimeout:       read(120*time.Second, s.IdleTimeout),
	}
	shutdownTimeout := read(15*time.Second, s.ShutdownTimeout)
	if err != nil {
		return nil, err
	}

	srv.MaxHeaderBytes, err = config.Read(ctx, config.Default(http.DefaultMaxHeaderBytes, s.MaxHeaderBytes))
	if err != nil {
		return nil, err
	}

	addr, err := config.Read(ctx, config.Default(":8080", s.Addr))
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return &App{
		log:             tapestry.Logger("github.com/z5labs/tapestry/http"),
		ln:              ln,
		srv:             srv,
		shutdownTimeout: shutdownTimeout,
	}, nil
}
