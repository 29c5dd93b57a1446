// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"bytes"
	"net/http"
)

// ResponseRecorder tracks whether a response has been written. In
// buffering mode nothing reaches the underlying writer until [ResponseRecorder.Commit]
// so the response can still be replaced after it was produced.
type ResponseRecorder struct {
	w      http.ResponseWriter
	buffer bool

	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

// NewResponseRecorder wraps w.
func NewResponseRecorder(w http.ResponseWriter, buffer bool) *ResponseRecorder {
	rec := &ResponseRecorder{
		w:      w,
		buffer: buffer,
	}
	if buffer {
		rec.header = make(http.Header)
	}
	return rec
}

// Header implements the [http.ResponseWriter] interface.
func (rec *ResponseRecorder) Header() http.Header {
	if rec.buffer {
		return rec.header
	}
	return rec.w.Header()
}

// WriteHeader implements the [http.ResponseWriter] interface. Only the
// first call has an effect.
func (rec *ResponseRecorder) WriteHeader(code int) {
	if rec.wrote {
		return
	}
	rec.wrote = true
	rec.status = code
	if !rec.buffer {
		rec.w.WriteHeader(code)
	}
}

// Write implements the [http.ResponseWriter] interface.
func (rec *ResponseRecorder) Write(b []byte) (int, error) {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	if rec.buffer {
		return rec.body.Write(b)
	}
	return rec.w.Write(b)
}

// Unwrap returns the underlying writer for use with [http.ResponseController].
func (rec *ResponseRecorder) Unwrap() http.ResponseWriter {
	return rec.w
}

// Written reports whether a status has been written.
func (rec *ResponseRecorder) Written() bool {
	return rec.wrote
}

// Buffered reports whether the recorder is in buffering mode.
func (rec *ResponseRecorder) Buffered() bool {
	return rec.buffer
}

// Status returns the written status code or zero.
func (rec *ResponseRecorder) Status() int {
	return rec.status
}

// Body returns the buffered body. It is always empty when not buffering.
func (rec *ResponseRecorder) Body() []byte {
	return rec.body.Bytes()
}

// Commit flushes a buffered response to the underlying writer.
func (rec *ResponseRecorder) Commit() error {
	if !rec.buffer || !rec.wrote {
		return nil
	}

	dst := rec.w.Header()
	for k, vs := range rec.header {
		dst[k] = append([]string(nil), vs...)
	}
	rec.w.WriteHeader(rec.status)

	_, err := rec.w.Write(rec.body.Bytes())
	return err
}

// Discard drops a buffered response including its headers. It reports
// false when the response already reached the client.
func (rec *ResponseRecorder) Discard() bool {
	if !rec.buffer {
		return !rec.wrote
	}
	rec.header = make(http.Header)
	rec.status = 0
	rec.body.Reset()
	rec.wrote = false
	return true
}
