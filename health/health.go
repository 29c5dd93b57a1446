// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether an application is alive and ready to
// serve traffic.
package health

import (
	"context"
	"sync/atomic"
)

// Monitor represents anything which can report its current state of health.
type Monitor interface {
	Healthy(context.Context) (bool, error)
}

// MonitorFunc is a function adapter that implements [Monitor].
type MonitorFunc func(context.Context) (bool, error)

// Healthy implements the [Monitor] interface.
func (f MonitorFunc) Healthy(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Binary is a [Monitor] with two states. It is safe for concurrent use and
// its zero value is unhealthy.
type Binary struct {
	healthy atomic.Bool
}

// Healthy returns a [Binary] which starts out healthy.
func Healthy() *Binary {
	b := new(Binary)
	b.MarkHealthy()
	return b
}

// MarkUnhealthy changes the state to unhealthy.
func (b *Binary) MarkUnhealthy() {
	b.healthy.Store(false)
}

// MarkHealthy changes the state to healthy.
func (b *Binary) MarkHealthy() {
	b.healthy.Store(true)
}

// Healthy implements the [Monitor] interface.
func (b *Binary) Healthy(ctx context.Context) (bool, error) {
	return b.healthy.Load(), nil
}

// And is healthy when every one of its monitors is. It stops at the first
// unhealthy monitor or error.
type And []Monitor

// Healthy implements the [Monitor] interface.
func (ms And) Healthy(ctx context.Context) (bool, error) {
	for _, m := range ms {
		healthy, err := m.Healthy(ctx)
		if !healthy || err != nil {
			return false, err
		}
	}
	return true, nil
}
