// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/z5labs/tapestry"
	"github.com/z5labs/tapestry/httperr"
)

// ErrorHandler is the error channel every route reports its failures to.
// It is called at most once per request and only before any part of the
// response reached the client.
type ErrorHandler interface {
	OnError(context.Context, http.ResponseWriter, error)
}

// ErrorHandlerFunc is a function adapter that implements [ErrorHandler].
type ErrorHandlerFunc func(context.Context, http.ResponseWriter, error)

// OnError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) OnError(ctx context.Context, w http.ResponseWriter, err error) {
	f(ctx, w, err)
}

// ProblemDetail is an RFC 7807 problem details response body.
//
// Reference: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ProblemDetailsErrorHandler is an [ErrorHandler] which writes every error
// as an application/problem+json response.
//
// The status is taken from the [httperr.Error] found in the error tree or
// is 500 when there is none. The message of an error is only included when
// the [httperr.Error] is exposable, every other error is described as
// "An internal server error occurred.".
type ProblemDetailsErrorHandler struct {
	defaultType string
	log         *slog.Logger
}

// ProblemDetailsOption configures a [ProblemDetailsErrorHandler].
type ProblemDetailsOption func(*ProblemDetailsErrorHandler)

// WithDefaultType sets the type URI of every problem. Defaults to
// "about:blank".
func WithDefaultType(uri string) ProblemDetailsOption {
	return func(h *ProblemDetailsErrorHandler) {
		h.defaultType = uri
	}
}

// NewProblemDetailsErrorHandler initializes a [ProblemDetailsErrorHandler].
func NewProblemDetailsErrorHandler(opts ...ProblemDetailsOption) *ProblemDetailsErrorHandler {
	h := &ProblemDetailsErrorHandler{
		defaultType: "about:blank",
		log:         tapestry.Logger("github.com/z5labs/tapestry/rest"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnError implements the [ErrorHandler] interface.
func (h *ProblemDetailsErrorHandler) OnError(ctx context.Context, w http.ResponseWriter, err error) {
	pd := h.problem(err)
	if pd.Status >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx, "sending error response", slog.Int("status", pd.Status), slog.Any("error", err))
	} else {
		h.log.WarnContext(ctx, "sending error response", slog.Int("status", pd.Status), slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)

	encErr := json.NewEncoder(w).Encode(pd)
	if encErr != nil {
		h.log.ErrorContext(ctx, "failed to encode problem details", slog.Any("error", encErr))
	}
}

func (h *ProblemDetailsErrorHandler) problem(err error) ProblemDetail {
	pd := ProblemDetail{
		Type:   h.defaultType,
		Title:  http.StatusText(http.StatusInternalServerError),
		Status: http.StatusInternalServerError,
		Detail: "An internal server error occurred.",
	}

	he, ok := httperr.As(err)
	if !ok || he.Status == 0 {
		return pd
	}

	pd.Status = he.Status
	pd.Title = http.StatusText(he.Status)
	if he.Expose && he.Message != "" {
		pd.Detail = he.Message
	}
	return pd
}
