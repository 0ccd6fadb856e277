package models

// EventDateTime is the provider's structured instant: an RFC 3339 timestamp
// plus the IANA time zone label it was authored in.
type EventDateTime struct {
	DateTime string `json:"dateTime"` // RFC 3339 timestamp, offset included
	TimeZone string `json:"timeZone"` // IANA zone label, e.g. "Africa/Johannesburg"
}

// RemoteEvent represents an event as the remote provider returns it.
type RemoteEvent struct {
	ID         string        `json:"id"`         // Unique within its calendar
	Summary    string        `json:"summary"`    // Title of the event
	Start      EventDateTime `json:"start"`      // Start instant
	End        EventDateTime `json:"end"`        // End instant
	CalendarID string        `json:"calendarId"` // Owning calendar
}

// RemoteCalendar is a provider calendar. The adapter only ever reads it.
type RemoteCalendar struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`         // Display name
	BackgroundColor string `json:"backgroundColor"` // Display color, e.g. "#9fe1e7"
}

// RemoteEventPayload is the body sent on create and edit. The event id is part
// of the operation, never of the payload.
type RemoteEventPayload struct {
	Summary  string        `json:"summary"`
	Location string        `json:"location"`
	Start    EventDateTime `json:"start"`
	End      EventDateTime `json:"end"`
}

// ListResponse is the answer to the initial fetch.
type ListResponse struct {
	Events    []RemoteEvent    `json:"events"`
	Calendars []RemoteCalendar `json:"calendars"`
}
