// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type absent struct{}

func (absent) String() string {
	return "<absent>"
}

// Absent is bound to an optional argument which the request did not supply.
var Absent any = absent{}

// IsAbsent reports whether v is the [Absent] marker.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Args are the positional handler arguments for one invocation.
type Args []any

// Clone returns a shallow copy of args.
func (args Args) Clone() Args {
	if args == nil {
		return nil
	}
	out := make(Args, len(args))
	copy(out, args)
	return out
}

// ArgumentCountError is returned when a handler is invoked with a different
// number of arguments than it declares.
type ArgumentCountError struct {
	Want int
	Got  int
}

func (e ArgumentCountError) Error() string {
	return fmt.Sprintf("handler expects %d arguments but received %d", e.Want, e.Got)
}

// ArgumentTypeError is returned when a positional argument cannot be
// converted to the type the handler declares for it.
type ArgumentTypeError struct {
	Index int
	Want  reflect.Type
	Got   any
	Cause error
}

func (e ArgumentTypeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("argument %d: cannot use %T as %s", e.Index, e.Got, e.Want)
	}
	return fmt.Sprintf("argument %d: cannot use %T as %s: %v", e.Index, e.Got, e.Want, e.Cause)
}

func (e ArgumentTypeError) Unwrap() error {
	return e.Cause
}

// Arg converts the i'th argument to T. Absent and nil arguments convert to
// the zero value of T. Numeric arguments are converted between numeric
// kinds. Anything else which is not already a T is converted through its
// JSON representation.
func Arg[T any](args Args, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, ArgumentCountError{Want: i + 1, Got: len(args)}
	}

	v := args[i]
	if v == nil || IsAbsent(v) {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	want := reflect.TypeFor[T]()
	rv := reflect.ValueOf(v)
	if numeric(rv.Kind()) && numeric(want.Kind()) {
		return rv.Convert(want).Interface().(T), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return zero, ArgumentTypeError{Index: i, Want: want, Got: v, Cause: err}
	}

	var t T
	err = json.Unmarshal(b, &t)
	if err != nil {
		return zero, ArgumentTypeError{Index: i, Want: want, Got: v, Cause: err}
	}
	return t, nil
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
