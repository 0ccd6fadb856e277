// Package translate maps between the remote provider's schema and the
// widget's schema. Every function is pure.
package translate

import (
	"fmt"
	"time"

	"unical/internal/models"
)

// TimeZone is the zone every outbound write is labelled with. The widget
// displays in a single zone, so the inbound label is not kept.
const TimeZone = "Africa/Johannesburg"

// Location is sent on every write. The widget has no location field.
const Location = " "

// ToUIEvent converts a provider event. The zone label is dropped; the wall
// clock and offset of each instant are kept.
func ToUIEvent(e models.RemoteEvent) (models.UIEvent, error) {
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return models.UIEvent{}, fmt.Errorf("event %s: invalid start %q: %w", e.ID, e.Start.DateTime, err)
	}
	end, err := time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil {
		return models.UIEvent{}, fmt.Errorf("event %s: invalid end %q: %w", e.ID, e.End.DateTime, err)
	}
	if end.Before(start) {
		return models.UIEvent{}, fmt.Errorf("event %s: end %s before start %s", e.ID, e.End.DateTime, e.Start.DateTime)
	}

	return models.UIEvent{
		ID:         models.Remote(e.ID),
		Name:       e.Summary,
		StartDate:  start,
		EndDate:    end,
		ResourceID: e.CalendarID,
	}, nil
}

// ToUIEvents converts a whole fetch. The first bad event fails the batch.
func ToUIEvents(events []models.RemoteEvent) ([]models.UIEvent, error) {
	out := make([]models.UIEvent, 0, len(events))
	for _, e := range events {
		u, err := ToUIEvent(e)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// ToUIResource projects a calendar onto a widget resource.
func ToUIResource(c models.RemoteCalendar) models.UIResource {
	return models.UIResource{
		ID:         c.ID,
		Name:       c.Summary,
		EventColor: c.BackgroundColor,
	}
}

func ToUIResources(calendars []models.RemoteCalendar) []models.UIResource {
	out := make([]models.UIResource, 0, len(calendars))
	for _, c := range calendars {
		out = append(out, ToUIResource(c))
	}
	return out
}

// ToRemoteEventPayload builds the write body for an event. The identifier is
// not part of it.
func ToRemoteEventPayload(u models.UIEvent) models.RemoteEventPayload {
	return models.RemoteEventPayload{
		Summary:  u.Name,
		Location: Location,
		Start: models.EventDateTime{
			DateTime: u.StartDate.Format(time.RFC3339),
			TimeZone: TimeZone,
		},
		End: models.EventDateTime{
			DateTime: u.EndDate.Format(time.RFC3339),
			TimeZone: TimeZone,
		},
	}
}
