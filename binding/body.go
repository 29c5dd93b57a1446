// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package binding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/z5labs/tapestry/httperr"
	"github.com/z5labs/tapestry/metadata"
	"github.com/z5labs/tapestry/pipeline"

	"github.com/z5labs/sdk-go/try"
)

type parsedBodyKey struct{}

// WithParsedBody records that the transport already parsed the request
// body into v. Body bindings reuse v instead of reading the body again.
func WithParsedBody(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, parsedBodyKey{}, parsedBody{v: v})
}

type parsedBody struct {
	v any
}

// ParsedBody returns the body recorded with [WithParsedBody].
func ParsedBody(ctx context.Context) (any, bool) {
	pb, ok := ctx.Value(parsedBodyKey{}).(parsedBody)
	return pb.v, ok
}

// UnsupportedMediaTypeError is returned when the request body does not
// have the media type a body binding declares.
type UnsupportedMediaTypeError struct {
	Expected string
	Actual   string
}

func (e UnsupportedMediaTypeError) Error() string {
	return "unsupported media type " + e.Actual + ", expected " + e.Expected
}

// bodyCache holds the body of one request once it has been read.
type bodyCache struct {
	read bool
	v    any
	err  error
}

const bodyIn = "body"

func (b *Binder) bindBody(r *http.Request, binding metadata.Binding, cache *bodyCache) (any, error) {
	if !cache.read {
		cache.v, cache.err = readBody(r, binding)
		cache.read = true
	}
	if cache.err != nil {
		return nil, cache.err
	}

	if cache.v == nil {
		if binding.Required {
			return nil, httperr.BadRequest(MissingRequiredParameterError{
				Parameter: bodyIn,
				In:        bodyIn,
			})
		}
		return pipeline.Absent, nil
	}

	err := b.validator.Validate(binding.Schema, cache.v)
	if err != nil {
		return nil, invalid(bodyIn, bodyIn, err)
	}
	return cache.v, nil
}

func readBody(r *http.Request, binding metadata.Binding) (v any, err error) {
	if pb, ok := ParsedBody(r.Context()); ok {
		return pb, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer try.Close(&err, r.Body)

	expected := binding.MediaType
	if expected == "" {
		expected = "application/json"
	}

	actual := expected
	if ct := r.Header.Get("Content-Type"); ct != "" {
		actual, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, httperr.Wrap(http.StatusUnsupportedMediaType, err)
		}
	}
	if !compatible(expected, actual) {
		return nil, httperr.Wrap(http.StatusUnsupportedMediaType, UnsupportedMediaTypeError{
			Expected: expected,
			Actual:   actual,
		})
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, httperr.BadRequest(err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	switch {
	case isJSON(actual):
		if !json.Valid(raw) {
			return nil, httperr.BadRequest(InvalidParameterValueError{
				Parameter: bodyIn,
				In:        bodyIn,
				Reason:    "malformed JSON",
				Cause:     errors.New("request body is not valid JSON"),
			})
		}
		return json.RawMessage(raw), nil
	case actual == "application/x-www-form-urlencoded":
		return parseForm(string(raw), binding.Schema)
	case strings.HasPrefix(actual, "text/"):
		return string(raw), nil
	default:
		return raw, nil
	}
}

func compatible(expected, actual string) bool {
	if expected == actual || expected == "*/*" {
		return true
	}
	major, _, _ := strings.Cut(expected, "/")
	if strings.HasSuffix(expected, "/*") && strings.HasPrefix(actual, major+"/") {
		return true
	}
	return isJSON(expected) && isJSON(actual)
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
