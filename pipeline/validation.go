// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/z5labs/tapestry/validate"

	"github.com/swaggest/openapi-go/openapi3"
)

// ResponseValidationError is returned when a written response does not
// match any response declared for its route.
type ResponseValidationError struct {
	Operation   string
	Status      int
	ContentType string
	Reason      string
	Cause       error
}

func (e ResponseValidationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("invalid response from %s (%d %s): %s", e.Operation, e.Status, e.ContentType, e.Reason)
	}
	return fmt.Sprintf("invalid response from %s (%d %s): %s: %v", e.Operation, e.Status, e.ContentType, e.Reason, e.Cause)
}

func (e ResponseValidationError) Unwrap() error {
	return e.Cause
}

// ValidateResponses returns a [Factory] whose middleware checks the
// response written by the rest of the chain against the route's declared
// responses. The response must be buffered so an invalid response can be
// replaced before it reaches the client.
func ValidateResponses(v validate.Validator) Factory {
	return FactoryFunc(func(ri RouteInfo) (Middleware, error) {
		name := ri.OperationName()
		op := ri.Operation

		m := MiddlewareFunc(func(ctx context.Context, rc *RequestContext, next Next) (any, error) {
			out, err := next.Call(ctx)
			if err != nil {
				return out, err
			}

			rec := rc.Recorder()
			if !rec.Buffered() || !rec.Written() {
				return out, nil
			}

			err = ValidateResponse(v, name, op, rec.Status(), rec.Header().Get("Content-Type"), rec.Body())
			return out, err
		})
		return m, nil
	})
}

// ValidateResponse checks one response against the responses declared by
// op. The declared response is matched on the exact status code, then on
// its range (e.g. "2XX"), then on "default".
func ValidateResponse(v validate.Validator, name string, op *openapi3.Operation, status int, contentType string, body []byte) error {
	if op == nil {
		return nil
	}

	resp, ok := matchResponse(op.Responses.MapOfResponseOrRefValues, status)
	if !ok {
		return ResponseValidationError{
			Operation:   name,
			Status:      status,
			ContentType: contentType,
			Reason:      "status code is not declared",
		}
	}
	if len(resp.Content) == 0 {
		if len(body) == 0 {
			return nil
		}
		return ResponseValidationError{
			Operation:   name,
			Status:      status,
			ContentType: contentType,
			Reason:      "response declares no content but a body was written",
		}
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ResponseValidationError{
			Operation:   name,
			Status:      status,
			ContentType: contentType,
			Reason:      "missing or malformed content type",
			Cause:       err,
		}
	}

	mt, ok := matchContent(resp.Content, mediaType)
	if !ok {
		return ResponseValidationError{
			Operation:   name,
			Status:      status,
			ContentType: contentType,
			Reason:      "content type is not declared",
		}
	}
	if mt.Schema == nil || !isJSON(mediaType) {
		return nil
	}

	var value any
	err = json.Unmarshal(body, &value)
	if err != nil {
		return ResponseValidationError{
			Operation:   name,
			Status:      status,
			ContentType: contentType,
			Reason:      "body is not valid JSON",
			Cause:       err,
		}
	}

	err = v.Validate(mt.Schema, value)
	if err != nil {
		return ResponseValidationError{
			Operation:   name,
			Status:      status,
			ContentType: contentType,
			Reason:      "body does not match schema",
			Cause:       err,
		}
	}
	return nil
}

func matchResponse(responses map[string]openapi3.ResponseOrRef, status int) (*openapi3.Response, bool) {
	code := strconv.Itoa(status)
	keys := []string{code, code[:1] + "XX", "default"}
	for _, k := range keys {
		for key, r := range responses {
			if !strings.EqualFold(key, k) || r.Response == nil {
				continue
			}
			return r.Response, true
		}
	}
	return nil, false
}

func matchContent(content map[string]openapi3.MediaType, mediaType string) (openapi3.MediaType, bool) {
	if mt, ok := content[mediaType]; ok {
		return mt, true
	}
	major, _, _ := strings.Cut(mediaType, "/")
	if mt, ok := content[major+"/*"]; ok {
		return mt, true
	}
	mt, ok := content["*/*"]
	return mt, ok
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
