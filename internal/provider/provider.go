// Package provider defines the calendar backends the HTTP API can serve.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"unical/internal/models"
)

// ErrNotFound is returned when a calendar or event does not exist.
var ErrNotFound = errors.New("not found")

// Provider is one signed-in user's view of a calendar service.
type Provider interface {
	// List returns the calendars the user owns and every event in them.
	List(ctx context.Context) ([]models.RemoteCalendar, []models.RemoteEvent, error)
	Insert(ctx context.Context, calendarID string, payload models.RemoteEventPayload) (models.RemoteEvent, error)
	Update(ctx context.Context, calendarID, eventID string, payload models.RemoteEventPayload) (models.RemoteEvent, error)
	Delete(ctx context.Context, calendarID, eventID string) error
}

// Authenticator turns a login code into a Provider. key is the API key the
// server is about to issue for it.
type Authenticator interface {
	Authenticate(ctx context.Context, key, code string) (Provider, error)
}

// Restorer is implemented by authenticators that persist their grants, so
// issued keys survive a restart.
type Restorer interface {
	Restore(ctx context.Context) (map[string]Provider, error)
}

// ValidatePayload checks the parts of a write body every backend relies on.
func ValidatePayload(p models.RemoteEventPayload) error {
	start, err := time.Parse(time.RFC3339, p.Start.DateTime)
	if err != nil {
		return fmt.Errorf("invalid start dateTime %q", p.Start.DateTime)
	}
	end, err := time.Parse(time.RFC3339, p.End.DateTime)
	if err != nil {
		return fmt.Errorf("invalid end dateTime %q", p.End.DateTime)
	}
	if end.Before(start) {
		return errors.New("end is before start")
	}
	if p.Start.TimeZone != "" {
		if _, err := time.LoadLocation(p.Start.TimeZone); err != nil {
			return fmt.Errorf("invalid start timeZone %q", p.Start.TimeZone)
		}
	}
	if p.End.TimeZone != "" {
		if _, err := time.LoadLocation(p.End.TimeZone); err != nil {
			return fmt.Errorf("invalid end timeZone %q", p.End.TimeZone)
		}
	}
	return nil
}
