// Package state holds what the calendar widget renders: events, resources, a
// busy flag and the last failure message.
package state

import (
	"slices"
	"sync"

	"unical/internal/models"
)

type Store struct {
	mu        sync.RWMutex
	events    []models.UIEvent
	resources []models.UIResource
	busy      bool
	errMsg    string
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot is a consistent copy of the store.
type Snapshot struct {
	Events    []models.UIEvent
	Resources []models.UIResource
	Busy      bool
	Error     string
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Events:    slices.Clone(s.events),
		Resources: slices.Clone(s.resources),
		Busy:      s.busy,
		Error:     s.errMsg,
	}
}

// Replace swaps in the result of an initial load.
func (s *Store) Replace(events []models.UIEvent, resources []models.UIResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = slices.Clone(events)
	s.resources = slices.Clone(resources)
}

// Upsert records a confirmed edit, replacing the event with the same id.
func (s *Store) Upsert(e models.UIEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.events, func(x models.UIEvent) bool { return x.ID == e.ID })
	if i < 0 {
		s.events = append(s.events, e)
		return
	}
	s.events[i] = e
}

// Acquire raises the busy flag and returns the function that lowers it.
// The flag is advisory: overlapping callers are not rejected, and the first
// release clears it.
func (s *Store) Acquire() (release func()) {
	s.setBusy(true)
	return func() { s.setBusy(false) }
}

func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

func (s *Store) setBusy(b bool) {
	s.mu.Lock()
	s.busy = b
	s.mu.Unlock()
}

// SetError records the message shown to the user.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}
