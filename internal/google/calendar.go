package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"unical/internal/models"
	"unical/internal/provider"
)

const ownerRole = "owner"

// CalendarClient serves one Google account's owned calendars.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewCalendarClient wraps an authenticated Calendar service.
func NewCalendarClient(logger *slog.Logger, service *calendar.Service) *CalendarClient {
	return &CalendarClient{service: service, logger: logger}
}

// List returns the calendars the user owns and all their timed events.
func (c *CalendarClient) List(ctx context.Context) ([]models.RemoteCalendar, []models.RemoteEvent, error) {
	var calendars []models.RemoteCalendar
	err := c.service.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			// Only calendars the user owns can be written to.
			if item.AccessRole != ownerRole {
				continue
			}
			calendars = append(calendars, models.RemoteCalendar{
				ID:              item.Id,
				Summary:         item.Summary,
				BackgroundColor: item.BackgroundColor,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list calendars: %w", wrapNotFound(err))
	}

	var events []models.RemoteEvent
	for _, cal := range calendars {
		err := c.service.Events.List(cal.ID).ShowDeleted(false).Pages(ctx, func(page *calendar.Events) error {
			events = append(events, toRemoteEvents(page.Items, cal.ID)...)
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list events of %s: %w", cal.ID, wrapNotFound(err))
		}
	}

	c.logger.Info("Fetched events from Google Calendar", "calendars", len(calendars), "events", len(events))
	return calendars, events, nil
}

func (c *CalendarClient) Insert(ctx context.Context, calendarID string, payload models.RemoteEventPayload) (models.RemoteEvent, error) {
	ev, err := c.service.Events.Insert(calendarID, toGoogleEvent(payload)).Context(ctx).Do()
	if err != nil {
		return models.RemoteEvent{}, fmt.Errorf("failed to insert event: %w", wrapNotFound(err))
	}
	c.logger.Debug("Inserted event", "calendarID", calendarID, "eventID", ev.Id)
	return toRemoteEvent(ev, calendarID), nil
}

func (c *CalendarClient) Update(ctx context.Context, calendarID, eventID string, payload models.RemoteEventPayload) (models.RemoteEvent, error) {
	ev, err := c.service.Events.Update(calendarID, eventID, toGoogleEvent(payload)).Context(ctx).Do()
	if err != nil {
		return models.RemoteEvent{}, fmt.Errorf("failed to update event: %w", wrapNotFound(err))
	}
	c.logger.Debug("Updated event", "calendarID", calendarID, "eventID", eventID)
	return toRemoteEvent(ev, calendarID), nil
}

func (c *CalendarClient) Delete(ctx context.Context, calendarID, eventID string) error {
	if err := c.service.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", wrapNotFound(err))
	}
	c.logger.Debug("Deleted event", "calendarID", calendarID, "eventID", eventID)
	return nil
}

// toRemoteEvents converts Google Calendar events, tagging each with its calendar.
func toRemoteEvents(items []*calendar.Event, calendarID string) []models.RemoteEvent {
	var out []models.RemoteEvent
	for _, item := range items {
		// Skip all-day events: they carry a date, not a dateTime.
		if item.Start == nil || item.Start.DateTime == "" || item.End == nil || item.End.DateTime == "" {
			continue
		}
		if item.Status == "cancelled" {
			continue
		}
		out = append(out, toRemoteEvent(item, calendarID))
	}
	return out
}

func toRemoteEvent(item *calendar.Event, calendarID string) models.RemoteEvent {
	e := models.RemoteEvent{
		ID:         item.Id,
		Summary:    item.Summary,
		CalendarID: calendarID,
	}
	if item.Start != nil {
		e.Start = models.EventDateTime{DateTime: item.Start.DateTime, TimeZone: item.Start.TimeZone}
	}
	if item.End != nil {
		e.End = models.EventDateTime{DateTime: item.End.DateTime, TimeZone: item.End.TimeZone}
	}
	return e
}

func toGoogleEvent(p models.RemoteEventPayload) *calendar.Event {
	return &calendar.Event{
		Summary:  p.Summary,
		Location: p.Location,
		Start:    &calendar.EventDateTime{DateTime: p.Start.DateTime, TimeZone: p.Start.TimeZone},
		End:      &calendar.EventDateTime{DateTime: p.End.DateTime, TimeZone: p.End.TimeZone},
	}
}

func wrapNotFound(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %v", provider.ErrNotFound, err)
	}
	return err
}
