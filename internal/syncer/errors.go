package syncer

import "fmt"

// Kind classifies failures the user can see.
type Kind int

const (
	AuthenticationFailure Kind = iota + 1
	FetchFailure
	CreateFailure
	EditFailure
)

var messages = map[Kind]string{
	AuthenticationFailure: "Authentication failure",
	FetchFailure:          "Failed to fetch events",
	CreateFailure:         "Failed to add event",
	EditFailure:           "Failed to edit event",
}

// Message is the short text shown for a failure of this kind.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return "Unexpected failure"
}

// Failure is what a user-facing operation returns when it fails. Its message
// never includes the cause; the cause is kept for logging.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return f.Kind.Message()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// MovePhase names the step of a move that failed.
type MovePhase string

const (
	PhaseDelete MovePhase = "delete"
	PhaseCreate MovePhase = "create"
)

// MoveError reports a failed move. When Deleted is set the event has already
// been removed from the source calendar and was not recreated in the target:
// the remote copy is gone.
type MoveError struct {
	EventID string
	From    string
	To      string
	Phase   MovePhase
	Deleted bool
	Err     error
}

func (e *MoveError) Error() string {
	if e.Deleted {
		return fmt.Sprintf("move %s from %s to %s: deleted from source but %s failed: %v", e.EventID, e.From, e.To, e.Phase, e.Err)
	}
	return fmt.Sprintf("move %s from %s to %s: %s failed: %v", e.EventID, e.From, e.To, e.Phase, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}
