package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"unical/internal/models"
)

// Memory is a Provider that keeps calendars in process. It backs the
// "memory" provider setting and the end-to-end tests.
type Memory struct {
	mu        sync.Mutex
	calendars []models.RemoteCalendar
	events    map[string][]models.RemoteEvent // calendar id -> events
}

func NewMemory(calendars ...models.RemoteCalendar) *Memory {
	m := &Memory{
		calendars: slices.Clone(calendars),
		events:    make(map[string][]models.RemoteEvent),
	}
	for _, c := range calendars {
		m.events[c.ID] = nil
	}
	return m
}

// Seed adds an existing event without going through Insert.
func (m *Memory) Seed(e models.RemoteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.CalendarID]; !ok {
		return fmt.Errorf("calendar %s: %w", e.CalendarID, ErrNotFound)
	}
	m.events[e.CalendarID] = append(m.events[e.CalendarID], e)
	return nil
}

// Events returns the events of one calendar.
func (m *Memory) Events(calendarID string) []models.RemoteEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events[calendarID])
}

func (m *Memory) List(_ context.Context) ([]models.RemoteCalendar, []models.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []models.RemoteEvent
	for _, c := range m.calendars {
		events = append(events, m.events[c.ID]...)
	}
	return slices.Clone(m.calendars), events, nil
}

func (m *Memory) Insert(_ context.Context, calendarID string, p models.RemoteEventPayload) (models.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[calendarID]; !ok {
		return models.RemoteEvent{}, fmt.Errorf("calendar %s: %w", calendarID, ErrNotFound)
	}
	e := fromPayload(uuid.New().String(), calendarID, p)
	m.events[calendarID] = append(m.events[calendarID], e)
	return e, nil
}

func (m *Memory) Update(_ context.Context, calendarID, eventID string, p models.RemoteEventPayload) (models.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(calendarID, eventID)
	if err != nil {
		return models.RemoteEvent{}, err
	}
	e := fromPayload(eventID, calendarID, p)
	m.events[calendarID][i] = e
	return e, nil
}

func (m *Memory) Delete(_ context.Context, calendarID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(calendarID, eventID)
	if err != nil {
		return err
	}
	m.events[calendarID] = slices.Delete(m.events[calendarID], i, i+1)
	return nil
}

func (m *Memory) index(calendarID, eventID string) (int, error) {
	events, ok := m.events[calendarID]
	if !ok {
		return -1, fmt.Errorf("calendar %s: %w", calendarID, ErrNotFound)
	}
	i := slices.IndexFunc(events, func(e models.RemoteEvent) bool { return e.ID == eventID })
	if i < 0 {
		return -1, fmt.Errorf("event %s in %s: %w", eventID, calendarID, ErrNotFound)
	}
	return i, nil
}

func fromPayload(id, calendarID string, p models.RemoteEventPayload) models.RemoteEvent {
	return models.RemoteEvent{
		ID:         id,
		Summary:    p.Summary,
		Start:      p.Start,
		End:        p.End,
		CalendarID: calendarID,
	}
}

// MemoryAuthenticator hands every login the same Memory provider.
type MemoryAuthenticator struct {
	Provider *Memory
}

func (a MemoryAuthenticator) Authenticate(_ context.Context, _, code string) (Provider, error) {
	if code == "" {
		return nil, errors.New("empty login code")
	}
	return a.Provider, nil
}
