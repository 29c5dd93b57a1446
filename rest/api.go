// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/z5labs/tapestry"
	"github.com/z5labs/tapestry/auth"
	"github.com/z5labs/tapestry/health"
	"github.com/z5labs/tapestry/openapi"
	"github.com/z5labs/tapestry/validate"

	"github.com/go-chi/chi/v5"
)

// Options holds configuration values used by [NewApi] and [Register].
type Options struct {
	registry          *auth.Registry
	validator         validate.Validator
	validateResponses bool
	errHandler        ErrorHandler
	readiness         health.Monitor
	liveness          health.Monitor
	notFound          http.Handler
	methodNotAllowed  http.Handler
}

// Option sets a value on [Options].
type Option func(*Options)

// Authenticators registers the authenticators used to check the security
// requirements of every operation. Defaults to the registry the build was
// assembled against.
func Authenticators(reg *auth.Registry) Option {
	return func(o *Options) {
		o.registry = reg
	}
}

// Validator sets the schema validator for parameters, request bodies and,
// when enabled, responses. Defaults to a [validate.JSONSchema] resolving
// references against the schemas of the build.
func Validator(v validate.Validator) Option {
	return func(o *Options) {
		o.validator = v
	}
}

// ValidateResponses enables checking every response against the responses
// its operation declares. Responses are buffered so a mismatch can still be
// reported as a 500 instead of the original response.
func ValidateResponses(enabled bool) Option {
	return func(o *Options) {
		o.validateResponses = enabled
	}
}

// OnError sets the [ErrorHandler] every route reports failures to.
// Defaults to a [ProblemDetailsErrorHandler].
func OnError(eh ErrorHandler) Option {
	return func(o *Options) {
		o.errHandler = eh
	}
}

// Readiness sets the [health.Monitor] served at GET /health/readiness.
//
// See [Liveness, Readiness, and Startup Probes] for more details.
//
// [Liveness, Readiness, and Startup Probes]: https://kubernetes.io/docs/concepts/configuration/liveness-readiness-startup-probes/
func Readiness(m health.Monitor) Option {
	return func(o *Options) {
		o.readiness = m
	}
}

// Liveness sets the [health.Monitor] served at GET /health/liveness.
func Liveness(m health.Monitor) Option {
	return func(o *Options) {
		o.liveness = m
	}
}

// NotFound overrides the handler for requests matching no route.
func NotFound(h http.Handler) Option {
	return func(o *Options) {
		o.notFound = h
	}
}

// MethodNotAllowed overrides the handler for requests matching a path but
// none of its methods.
func MethodNotAllowed(h http.Handler) Option {
	return func(o *Options) {
		o.methodNotAllowed = h
	}
}

func newOptions(b *openapi.Build, opts []Option) *Options {
	o := &Options{
		registry:  b.Registry,
		readiness: health.Healthy(),
		liveness:  health.Healthy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validator == nil {
		o.validator = validate.NewJSONSchema(validate.Components(b.Schemas()))
	}
	if o.errHandler == nil {
		o.errHandler = NewProblemDetailsErrorHandler()
	}
	return o
}

// Router is the part of a router [Register] needs. [chi.Router] implements it.
type Router interface {
	Method(method, pattern string, h http.Handler)
}

// Register compiles the pipeline of every operation in b and binds it to r
// at the operation's path and method. Every middleware factory is built
// here, once per route.
//
// Operations without a handler, as produced for spec-only builds, are
// skipped. Every security scheme an operation requires must have an
// authenticator in the registry, otherwise an [openapi.UnknownSchemeError]
// is returned.
func Register(r Router, b *openapi.Build, opts ...Option) error {
	return register(r, b, newOptions(b, opts))
}

func register(r Router, b *openapi.Build, o *Options) error {
	for _, op := range b.Operations {
		if op.Invoke == nil {
			continue
		}

		for _, alt := range op.Security {
			for scheme := range alt {
				if _, ok := o.registry.Lookup(scheme); !ok {
					return openapi.UnknownSchemeError{Path: op.Path, Method: op.Method, Scheme: scheme}
				}
			}
		}

		rt, err := newRoute(op, o)
		if err != nil {
			return err
		}
		r.Method(op.Method, op.Path, rt)
	}
	return nil
}

// Api is an [http.Handler] serving every operation of an [openapi.Build].
//
// Every Api also provides:
//   - the published OpenAPI document at GET /openapi.json
//   - a liveness probe at GET /health/liveness
//   - a readiness probe at GET /health/readiness
type Api struct {
	router *chi.Mux
}

// NewApi registers the operations of b on a new router.
func NewApi(b *openapi.Build, opts ...Option) (*Api, error) {
	o := newOptions(b, opts)

	doc, err := b.Public()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	mux := chi.NewMux()
	if o.notFound != nil {
		mux.NotFound(o.notFound.ServeHTTP)
	}
	if o.methodNotAllowed != nil {
		mux.MethodNotAllowed(o.methodNotAllowed.ServeHTTP)
	}

	log := tapestry.Logger("github.com/z5labs/tapestry/rest")
	mux.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write(raw)
		if err == nil {
			return
		}
		log.ErrorContext(
			r.Context(),
			"failed to write openapi document",
			slog.Any("error", err),
		)
	})
	mux.Get("/health/readiness", healthHandler(o.readiness))
	mux.Get("/health/liveness", healthHandler(o.liveness))

	err = register(mux, b, o)
	if err != nil {
		return nil, err
	}

	return &Api{router: mux}, nil
}

// ServeHTTP implements the [http.Handler] interface.
func (api *Api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

func healthHandler(m health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, err := m.Healthy(r.Context())
		if !healthy || err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
