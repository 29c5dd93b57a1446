// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable, lazily evaluated configuration values.
//
// A [Reader] produces a [Value] which may or may not be set. Readers are
// combined with [Or], [Default] and the parsing helpers so every setting
// can come from an environment variable, a file or a literal.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Value is the result of reading a [Reader].
type Value[T any] struct {
	v   T
	set bool
}

// ValueOf returns a set [Value].
func ValueOf[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Value returns the underlying value and whether it was set.
func (v Value[T]) Value() (T, bool) {
	return v.v, v.set
}

// Reader reads a configuration value.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is a function adapter that implements [Reader].
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// EmptyReader returns a [Reader] whose value is never set.
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// ReaderOf returns a [Reader] whose value is always v.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// NotSetError is returned by [Read] when a required value is not set.
type NotSetError struct{}

func (NotSetError) Error() string {
	return "config value is not set"
}

// Read returns the value of r or a [NotSetError] if it is not set. A nil
// reader is treated as an unset one.
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	var zero T
	if r == nil {
		return zero, NotSetError{}
	}

	val, err := r.Read(ctx)
	if err != nil {
		return zero, err
	}

	v, ok := val.Value()
	if !ok {
		return zero, NotSetError{}
	}
	return v, nil
}

// Must is like [Read] but panics on failure.
func Must[T any](ctx context.Context, r Reader[T]) T {
	v, err := Read(ctx, r)
	if err != nil {
		panic(err)
	}
	return v
}

// MustOr returns the value of r, or def when it is not set. It panics if r
// fails for any other reason.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	v, err := Read(ctx, r)
	if err == nil {
		return v
	}
	if errors.Is(err, NotSetError{}) {
		return def
	}
	panic(err)
}

// Or returns the value of the first reader whose value is set.
func Or[T any](readers ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range readers {
			if r == nil {
				continue
			}

			val, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := val.Value(); ok {
				return val, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Default returns the value of r, or def when it is not set.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return Or(r, ReaderOf(def))
}

// Env reads the environment variable name. An empty variable is not set.
func Env(name string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return Value[string]{}, nil
		}
		return ValueOf(v), nil
	})
}

// Map converts the value of r with f. Unset values are not converted.
func Map[A, B any](r Reader[A], f func(A) (B, error)) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}

		a, ok := val.Value()
		if !ok {
			return Value[B]{}, nil
		}

		b, err := f(a)
		if err != nil {
			return Value[B]{}, err
		}
		return ValueOf(b), nil
	})
}

// ParseError wraps a failure to parse a string value.
type ParseError struct {
	Value string
	Type  string
	Cause error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q as %s: %v", e.Value, e.Type, e.Cause)
}

func (e ParseError) Unwrap() error {
	return e.Cause
}

func parse[T any](typ string, f func(string) (T, error)) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := f(s)
		if err != nil {
			return v, ParseError{Value: s, Type: typ, Cause: err}
		}
		return v, nil
	}
}

// BoolFromString parses the value of r with [strconv.ParseBool].
func BoolFromString(r Reader[string]) Reader[bool] {
	return Map(r, parse("bool", strconv.ParseBool))
}

// IntFromString parses the value of r with [strconv.Atoi].
func IntFromString(r Reader[string]) Reader[int] {
	return Map(r, parse("int", strconv.Atoi))
}

// Int64FromString parses the value of r as a base 10 int64.
func Int64FromString(r Reader[string]) Reader[int64] {
	return Map(r, parse("int64", func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}))
}

// Float64FromString parses the value of r as a float64.
func Float64FromString(r Reader[string]) Reader[float64] {
	return Map(r, parse("float64", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}))
}

// DurationFromString parses the value of r with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return Map(r, parse("duration", time.ParseDuration))
}
