// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package metadata accumulates declarative fragments attached to
// controllers and their handlers.
package metadata

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Target identifies a controller.
type Target string

// Change is either a [Fragment] merged after the accumulated value or an
// [Update] computing the next value from it.
type Change interface {
	apply(prev Fragment) (Fragment, error)
}

func (f Fragment) apply(prev Fragment) (Fragment, error) {
	return Merge(prev, f)
}

// Update computes the next accumulated fragment from the previous one.
// Updates may add bindings but never change existing ones.
type Update func(Fragment) Fragment

func (u Update) apply(prev Fragment) (Fragment, error) {
	next := u(prev.Clone())
	for i, b := range prev.Bindings {
		nb, ok := next.Bindings[i]
		if !ok || nb != b {
			return Fragment{}, RebindError{Index: i}
		}
	}
	return next.Clone(), nil
}

// EmptyTargetError is returned when metadata is merged without a target.
type EmptyTargetError struct{}

func (EmptyTargetError) Error() string {
	return "metadata target must not be empty"
}

// EmptyHandlerNameError is returned when handler metadata is merged
// without a handler name.
type EmptyHandlerNameError struct {
	Target Target
}

func (e EmptyHandlerNameError) Error() string {
	return fmt.Sprintf("handler name must not be empty for controller %s", e.Target)
}

// ControllerBindingError is returned when an argument binding is merged
// into controller metadata. Arguments belong to handlers.
type ControllerBindingError struct {
	Target Target
	Index  int
}

func (e ControllerBindingError) Error() string {
	return fmt.Sprintf("argument %d is bound on controller %s, bind it on a handler instead", e.Index, e.Target)
}

type controllerEntry struct {
	fragment Fragment
	handlers []string
	byName   map[string]Fragment
}

// Store holds the merged fragments of every controller and handler
// registered with it. Stores are independent of each other and safe for
// concurrent use.
type Store struct {
	mu          sync.RWMutex
	targets     []Target
	controllers map[Target]*controllerEntry
}

// NewStore initializes an empty [Store].
func NewStore() *Store {
	return &Store{
		controllers: make(map[Target]*controllerEntry),
	}
}

func (s *Store) entry(t Target) *controllerEntry {
	e, ok := s.controllers[t]
	if ok {
		return e
	}
	e = &controllerEntry{
		byName: make(map[string]Fragment),
	}
	s.controllers[t] = e
	s.targets = append(s.targets, t)
	return e
}

// MergeController applies changes to the controller fragment of t in order.
// Either every change is applied or none is.
func (s *Store) MergeController(t Target, changes ...Change) error {
	if t == "" {
		return EmptyTargetError{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(t)
	next, err := applyAll(e.fragment, changes)
	if err != nil {
		return withTarget(err, t, "")
	}
	if len(next.Bindings) > 0 {
		first := slices.Min(slices.Collect(maps.Keys(next.Bindings)))
		return ControllerBindingError{Target: t, Index: first}
	}
	e.fragment = next
	return nil
}

// MergeHandler applies changes to the fragment of handler name on t in
// order. Handlers are remembered in the order they are first merged.
// Either every change is applied or none is.
func (s *Store) MergeHandler(t Target, name string, changes ...Change) error {
	if t == "" {
		return EmptyTargetError{}
	}
	if name == "" {
		return EmptyHandlerNameError{Target: t}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(t)
	prev, seen := e.byName[name]
	next, err := applyAll(prev, changes)
	if err != nil {
		return withTarget(err, t, name)
	}
	if !seen {
		e.handlers = append(e.handlers, name)
	}
	e.byName[name] = next
	return nil
}

// MustMergeController is like [Store.MergeController] but panics on error.
// It is meant for declarations made while a program initializes.
func (s *Store) MustMergeController(t Target, changes ...Change) {
	err := s.MergeController(t, changes...)
	if err != nil {
		panic(err)
	}
}

// MustMergeHandler is like [Store.MergeHandler] but panics on error.
func (s *Store) MustMergeHandler(t Target, name string, changes ...Change) {
	err := s.MergeHandler(t, name, changes...)
	if err != nil {
		panic(err)
	}
}

// Controller returns the merged controller fragment of t.
func (s *Store) Controller(t Target) (Fragment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.controllers[t]
	if !ok {
		return Fragment{}, false
	}
	return e.fragment.Clone(), true
}

// Handler returns the merged fragment of handler name on t.
func (s *Store) Handler(t Target, name string) (Fragment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.controllers[t]
	if !ok {
		return Fragment{}, false
	}
	f, ok := e.byName[name]
	if !ok {
		return Fragment{}, false
	}
	return f.Clone(), true
}

// Handlers returns the handler names of t in registration order.
func (s *Store) Handlers(t Target) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.controllers[t]
	if !ok {
		return nil
	}
	return slices.Clone(e.handlers)
}

// Targets returns every target with metadata in registration order.
func (s *Store) Targets() []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.targets)
}

func applyAll(f Fragment, changes []Change) (Fragment, error) {
	var err error
	for _, c := range changes {
		if c == nil {
			continue
		}
		f, err = c.apply(f)
		if err != nil {
			return Fragment{}, err
		}
	}
	return f, nil
}

func withTarget(err error, t Target, handler string) error {
	if rerr, ok := err.(RebindError); ok {
		rerr.Target = t
		rerr.Handler = handler
		return rerr
	}
	return err
}
