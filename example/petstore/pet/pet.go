// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pet is an in-memory pet registry.
package pet

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// Pet is a registered animal.
type Pet struct {
	ID   int64  `json:"id"`
	Name string `json:"name" required:"true" minLength:"1"`
	Tag  string `json:"tag,omitempty"`
}

// ErrNotFound is returned for unknown pet ids.
var ErrNotFound = errors.New("pet not found")

// Store keeps pets in memory.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	pets   map[int64]Pet
}

// NewStore initializes an empty [Store].
func NewStore() *Store {
	return &Store{
		nextID: 1,
		pets:   make(map[int64]Pet),
	}
}

// Add assigns p an id and stores it.
func (s *Store) Add(ctx context.Context, p Pet) (Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID
	s.nextID++
	s.pets[p.ID] = p
	return p, nil
}

// Get returns the pet with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pets[id]
	if !ok {
		return Pet{}, ErrNotFound
	}
	return p, nil
}

// List returns at most limit pets ordered by id. A non-empty tag only
// returns pets with that tag. A limit of zero or less means no limit.
func (s *Store) List(ctx context.Context, tag string, limit int) ([]Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pets := make([]Pet, 0, len(s.pets))
	for _, p := range s.pets {
		if tag != "" && !strings.EqualFold(p.Tag, tag) {
			continue
		}
		pets = append(pets, p)
	}

	slices.SortFunc(pets, func(a, b Pet) int {
		return int(a.ID - b.ID)
	})
	if limit > 0 && len(pets) > limit {
		pets = pets[:limit]
	}
	return pets, nil
}

// Delete removes the pet with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pets[id]; !ok {
		return ErrNotFound
	}
	delete(s.pets, id)
	return nil
}
