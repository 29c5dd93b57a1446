// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"text/template"

	"github.com/z5labs/sdk-go/try"
	"gopkg.in/yaml.v3"
)

// File reads the contents of the file at the path read from r.
func File(path Reader[string]) Reader[io.Reader] {
	return ReaderFunc[io.Reader](func(ctx context.Context) (val Value[io.Reader], err error) {
		p, err := Read(ctx, path)
		if err != nil {
			return Value[io.Reader]{}, err
		}

		f, err := os.Open(p)
		if err != nil {
			return Value[io.Reader]{}, err
		}
		defer try.Close(&err, f)

		b, err := io.ReadAll(f)
		if err != nil {
			return Value[io.Reader]{}, err
		}
		return ValueOf[io.Reader](bytes.NewReader(b)), nil
	})
}

// Template renders the value of r as a text/template before it is parsed.
// Two functions are available:
//   - env returns the named environment variable, or nil when it is unset
//   - default returns its first argument when the second one is nil
func Template(r Reader[io.Reader]) Reader[io.Reader] {
	funcs := template.FuncMap{
		"env": func(key string) any {
			v, ok := os.LookupEnv(key)
			if ok {
				return v
			}
			return nil
		},
		"default": func(def, v any) any {
			if v == nil {
				return def
			}
			return v
		},
	}

	return Map(r, func(src io.Reader) (io.Reader, error) {
		b, err := io.ReadAll(src)
		if err != nil {
			return nil, err
		}

		tmpl, err := template.New("config").Funcs(funcs).Parse(string(b))
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		err = tmpl.Execute(&buf, nil)
		if err != nil {
			return nil, err
		}
		return &buf, nil
	})
}

// UnmarshalYAML decodes the value of r as YAML into a T.
func UnmarshalYAML[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(src io.Reader) (T, error) {
		var v T
		err := yaml.NewDecoder(src).Decode(&v)
		if err == io.EOF {
			return v, nil
		}
		return v, err
	})
}

// UnmarshalJSON decodes the value of r as JSON into a T.
func UnmarshalJSON[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(src io.Reader) (T, error) {
		var v T
		err := json.NewDecoder(src).Decode(&v)
		return v, err
	})
}
