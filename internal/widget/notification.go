// Package widget decodes the calendar widget's save notifications and encodes
// events back into the widget's record shape.
package widget

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"unical/internal/models"
	"unical/internal/translate"
)

// TypeAfterEventSave is the only notification that carries an edit.
const TypeAfterEventSave = "aftereventsave"

// generatedMarker is how the widget tags identifiers it made up itself.
const generatedMarker = "_generated"

// localLayout is used for dates the widget sends without an offset.
const localLayout = "2006-01-02T15:04:05"

// Record is an event as the widget serializes it.
type Record struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	ResourceID string `json:"resourceId"`
}

type EventRecord struct {
	Data         Record `json:"data"`
	OriginalData Record `json:"originalData"`
}

// Notification is one widget event.
type Notification struct {
	Type        string      `json:"type"`
	EventRecord EventRecord `json:"eventRecord"`
}

// Decode parses a notification.
func Decode(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode widget notification: %w", err)
	}
	return n, nil
}

// Intent extracts the edit from an after-save notification. ok is false for
// every other notification type.
func (n Notification) Intent() (intent models.EditIntent, ok bool, err error) {
	if n.Type != TypeAfterEventSave {
		return models.EditIntent{}, false, nil
	}

	current, err := n.EventRecord.Data.UIEvent()
	if err != nil {
		return models.EditIntent{}, false, fmt.Errorf("current record: %w", err)
	}

	// New events may arrive without a prior snapshot.
	if n.EventRecord.OriginalData.ID == "" {
		return models.EditIntent{Current: current, Prior: current}, true, nil
	}
	prior, err := n.EventRecord.OriginalData.UIEvent()
	if err != nil {
		return models.EditIntent{}, false, fmt.Errorf("original record: %w", err)
	}
	return models.EditIntent{Current: current, Prior: prior}, true, nil
}

// ParseEventID maps the widget's string identifier onto its regime.
func ParseEventID(id string) models.EventID {
	if strings.Contains(id, generatedMarker) {
		return models.Local(id)
	}
	return models.Remote(id)
}

// UIEvent converts a record.
func (r Record) UIEvent() (models.UIEvent, error) {
	if r.ID == "" {
		return models.UIEvent{}, fmt.Errorf("record has no id")
	}
	start, err := parseDate(r.StartDate)
	if err != nil {
		return models.UIEvent{}, fmt.Errorf("record %s start: %w", r.ID, err)
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return models.UIEvent{}, fmt.Errorf("record %s end: %w", r.ID, err)
	}
	return models.UIEvent{
		ID:         ParseEventID(r.ID),
		Name:       r.Name,
		StartDate:  start,
		EndDate:    end,
		ResourceID: r.ResourceID,
	}, nil
}

// FromUIEvent is the inverse of Record.UIEvent.
func FromUIEvent(u models.UIEvent) Record {
	return Record{
		ID:         u.ID.String(),
		Name:       u.Name,
		StartDate:  u.StartDate.Format(time.RFC3339),
		EndDate:    u.EndDate.Format(time.RFC3339),
		ResourceID: u.ResourceID,
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	loc, err := time.LoadLocation(translate.TimeZone)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(localLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
