// Package dav serves calendars from a CalDAV server such as iCloud.
package dav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"unical/internal/models"
)

const (
	// DefaultEndpoint is iCloud's CalDAV root.
	DefaultEndpoint = "https://caldav.icloud.com/"
	// DefaultColor is used for every calendar; CalDAV does not report one.
	DefaultColor = "#1a73e8"

	productID = "-//unical//EN"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "unical/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient is one account on a CalDAV server. Calendar ids are collection
// paths; event ids are object names without the ".ics" suffix.
type CalDAVClient struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	color        string
	homeSet      string
}

// NewClient connects and discovers the account's calendar home set, which
// also verifies the credentials.
func NewClient(ctx context.Context, logger *slog.Logger, endpoint, username, password, color string) (*CalDAVClient, error) {
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	return newClient(ctx, logger, &http.Client{Transport: transport}, endpoint, color)
}

func newClient(ctx context.Context, logger *slog.Logger, httpClient webdav.HTTPClient, endpoint, color string) (*CalDAVClient, error) {
	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	principalPath, err := caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal path: %w", err)
	}
	homeSet, err := caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	if color == "" {
		color = DefaultColor
	}
	logger.Info("Connected to CalDAV server", "endpoint", endpoint, "homeSet", homeSet)
	return &CalDAVClient{caldavClient: caldavClient, logger: logger, color: color, homeSet: homeSet}, nil
}

// List returns every event-capable calendar in the home set and its timed events.
func (c *CalDAVClient) List(ctx context.Context) ([]models.RemoteCalendar, []models.RemoteEvent, error) {
	cals, err := c.caldavClient.FindCalendars(ctx, c.homeSet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	var calendars []models.RemoteCalendar
	var events []models.RemoteEvent
	for _, cal := range cals {
		if !supportsEvents(cal) {
			continue
		}
		calendars = append(calendars, models.RemoteCalendar{ID: cal.Path, Summary: cal.Name, BackgroundColor: c.color})

		objects, err := c.caldavClient.QueryCalendar(ctx, cal.Path, eventQuery())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query calendar %s: %w", cal.Path, err)
		}
		for _, obj := range objects {
			events = append(events, toRemoteEvents(obj, cal.Path)...)
		}
	}

	c.logger.Info("Fetched events from CalDAV", "calendars", len(calendars), "events", len(events))
	return calendars, events, nil
}

func (c *CalDAVClient) Insert(ctx context.Context, calendarID string, payload models.RemoteEventPayload) (models.RemoteEvent, error) {
	uid := GenerateUID()
	if err := c.put(ctx, calendarID, uid, payload); err != nil {
		return models.RemoteEvent{}, fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	return fromPayload(uid, calendarID, payload), nil
}

// Update overwrites the object. CalDAV has no partial update.
func (c *CalDAVClient) Update(ctx context.Context, calendarID, eventID string, payload models.RemoteEventPayload) (models.RemoteEvent, error) {
	if _, err := c.caldavClient.GetCalendarObject(ctx, objectPath(calendarID, eventID)); err != nil {
		return models.RemoteEvent{}, fmt.Errorf("failed to fetch event %s in %s: %w", eventID, calendarID, err)
	}
	if err := c.put(ctx, calendarID, eventID, payload); err != nil {
		return models.RemoteEvent{}, fmt.Errorf("failed to update event on CalDAV server: %w", err)
	}
	return fromPayload(eventID, calendarID, payload), nil
}

func (c *CalDAVClient) Delete(ctx context.Context, calendarID, eventID string) error {
	if err := c.caldavClient.RemoveAll(ctx, objectPath(calendarID, eventID)); err != nil {
		return fmt.Errorf("failed to delete event on CalDAV server: %w", err)
	}
	return nil
}

func (c *CalDAVClient) put(ctx context.Context, calendarID, uid string, payload models.RemoteEventPayload) error {
	vevent, err := toICal(uid, payload)
	if err != nil {
		return err
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, vevent)

	if _, err := c.caldavClient.PutCalendarObject(ctx, objectPath(calendarID, uid), cal); err != nil {
		return err
	}
	c.logger.Debug("Wrote event to CalDAV", "calendar", calendarID, "uid", uid)
	return nil
}

func eventQuery() *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent}},
		},
	}
}

func supportsEvents(cal caldav.Calendar) bool {
	if len(cal.SupportedComponentSet) == 0 {
		return true
	}
	for _, comp := range cal.SupportedComponentSet {
		if comp == ical.CompEvent {
			return true
		}
	}
	return false
}

func objectPath(calendarID, eventID string) string {
	return path.Join(calendarID, eventID+".ics")
}

// toRemoteEvents converts the timed VEVENTs of one calendar object.
func toRemoteEvents(obj caldav.CalendarObject, calendarID string) []models.RemoteEvent {
	if obj.Data == nil {
		return nil
	}
	id := strings.TrimSuffix(path.Base(obj.Path), ".ics")

	var out []models.RemoteEvent
	for _, ev := range obj.Data.Events() {
		// Recurrence overrides share the object; the master is enough here.
		if ev.Props.Get(ical.PropRecurrenceID) != nil {
			continue
		}
		start, startZone, ok := dateTime(ev, ical.PropDateTimeStart)
		if !ok {
			continue
		}
		end, endZone, ok := dateTime(ev, ical.PropDateTimeEnd)
		if !ok {
			continue
		}
		summary, _ := ev.Props.Text(ical.PropSummary)
		out = append(out, models.RemoteEvent{
			ID:         id,
			Summary:    summary,
			Start:      models.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: startZone},
			End:        models.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: endZone},
			CalendarID: calendarID,
		})
	}
	return out
}

// dateTime reads a timed property. All-day values are rejected.
func dateTime(ev ical.Event, name string) (time.Time, string, bool) {
	prop := ev.Props.Get(name)
	if prop == nil || prop.ValueType() == ical.ValueDate {
		return time.Time{}, "", false
	}
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, "", false
	}
	zone := prop.Params.Get(ical.ParamTimezoneID)
	if zone == "" {
		zone = t.Location().String()
	}
	return t, zone, true
}

// toICal converts a write payload to a VEVENT, keeping the payload's zone.
func toICal(uid string, p models.RemoteEventPayload) (*ical.Component, error) {
	start, err := inZone(p.Start)
	if err != nil {
		return nil, err
	}
	end, err := inZone(p.End)
	if err != nil {
		return nil, err
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, p.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end)
	if strings.TrimSpace(p.Location) != "" {
		ve.Props.SetText(ical.PropLocation, p.Location)
	}
	return ve, nil
}

func inZone(dt models.EventDateTime) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid dateTime %q: %w", dt.DateTime, err)
	}
	if dt.TimeZone == "" {
		return t, nil
	}
	loc, err := time.LoadLocation(dt.TimeZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timeZone %q: %w", dt.TimeZone, err)
	}
	return t.In(loc), nil
}

func fromPayload(id, calendarID string, p models.RemoteEventPayload) models.RemoteEvent {
	return models.RemoteEvent{ID: id, Summary: p.Summary, Start: p.Start, End: p.End, CalendarID: calendarID}
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
