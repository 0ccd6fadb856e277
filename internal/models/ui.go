package models

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// LocalID is an identifier the widget assigned to an event that has no remote
// copy yet.
type LocalID string

// RemoteID is an identifier mirrored from a RemoteEvent.
type RemoteID string

// EventID is either Local or Remote, never both.
type EventID struct {
	v mo.Either[LocalID, RemoteID]
}

// Local builds a transient identifier.
func Local(id string) EventID {
	return EventID{v: mo.Left[LocalID, RemoteID](LocalID(id))}
}

// Remote builds a durable identifier.
func Remote(id string) EventID {
	return EventID{v: mo.Right[LocalID, RemoteID](RemoteID(id))}
}

// IsLocal reports whether the event has not been created remotely yet.
func (id EventID) IsLocal() bool {
	return id.v.IsLeft()
}

// Remote returns the durable identifier, if there is one.
func (id EventID) Remote() (RemoteID, bool) {
	return id.v.Right()
}

// String returns the raw identifier regardless of regime.
func (id EventID) String() string {
	if l, ok := id.v.Left(); ok {
		return string(l)
	}
	r, _ := id.v.Right()
	return string(r)
}

// GoString makes the regime visible in test failures.
func (id EventID) GoString() string {
	if id.IsLocal() {
		return fmt.Sprintf("Local(%q)", id.String())
	}
	return fmt.Sprintf("Remote(%q)", id.String())
}

// UIEvent is an event as the calendar widget displays it.
type UIEvent struct {
	ID         EventID
	Name       string
	StartDate  time.Time
	EndDate    time.Time
	ResourceID string // Id of the owning UIResource
}

// UIResource is the widget's view of a RemoteCalendar.
type UIResource struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EventColor string `json:"eventColor"`
}

// EditIntent is one completed user edit: the event after the edit and the
// same event before it. It is consumed once.
type EditIntent struct {
	Current UIEvent
	Prior   UIEvent
}
