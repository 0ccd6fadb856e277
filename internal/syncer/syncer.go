package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"unical/internal/models"
	"unical/internal/remote"
	"unical/internal/state"
	"unical/internal/translate"
)

// Action is the remote sequence chosen for an edit.
type Action int

const (
	// ActionCreate: the event only exists in the widget so far.
	ActionCreate Action = iota + 1
	// ActionEdit: a remote event changed but stayed in its calendar.
	ActionEdit
	// ActionMove: a remote event was dragged to another calendar.
	ActionMove
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionEdit:
		return "edit"
	case ActionMove:
		return "move"
	default:
		return "unknown"
	}
}

// Classify picks the action for an edit. A local identifier always means
// create, whatever the resource history.
func Classify(intent models.EditIntent) Action {
	if intent.Current.ID.IsLocal() {
		return ActionCreate
	}
	if intent.Prior.ResourceID == intent.Current.ResourceID {
		return ActionEdit
	}
	return ActionMove
}

// Syncer pushes widget edits to the remote calendars and keeps the store in
// step with the outcome.
type Syncer struct {
	logger *slog.Logger
	client remote.Client
	store  *state.Store
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, client remote.Client, store *state.Store) *Syncer {
	return &Syncer{
		logger: logger,
		client: client,
		store:  store,
	}
}

// Load fetches every visible event and calendar and replaces the store's
// contents. On failure the store is left as it was.
func (s *Syncer) Load(ctx context.Context) error {
	release := s.store.Acquire()
	defer release()

	s.logger.Info("Loading events and calendars.")
	resp, err := s.client.List(ctx)
	if err != nil {
		return s.fail(FetchFailure, fmt.Errorf("list: %w", err))
	}

	events, err := translate.ToUIEvents(resp.Events)
	if err != nil {
		return s.fail(FetchFailure, fmt.Errorf("translate events: %w", err))
	}
	resources := translate.ToUIResources(resp.Calendars)

	s.store.Replace(events, resources)
	s.logger.Info("Loaded events and calendars.", "events", len(events), "calendars", len(resources))
	return nil
}

// Apply reproduces one user edit remotely. Any remote error is reported as a
// single *Failure; nothing is retried.
func (s *Syncer) Apply(ctx context.Context, intent models.EditIntent) error {
	release := s.store.Acquire()
	defer release()

	current := intent.Current
	payload := translate.ToRemoteEventPayload(current)
	action := Classify(intent)
	s.logger.Debug("Applying edit.", "action", action, "id", current.ID.String(), "calendar", current.ResourceID)

	switch action {
	case ActionCreate:
		if err := s.client.Create(ctx, current.ResourceID, payload); err != nil {
			return s.fail(CreateFailure, err)
		}
	case ActionEdit:
		if err := s.client.Update(ctx, current.ResourceID, current.ID.String(), payload); err != nil {
			return s.fail(EditFailure, err)
		}
	case ActionMove:
		if err := s.move(ctx, intent.Prior.ResourceID, current.ResourceID, current.ID.String(), payload); err != nil {
			return s.fail(EditFailure, err)
		}
	}

	s.store.Upsert(current)
	s.logger.Info("Edit synced.", "action", action, "id", current.ID.String(), "calendar", current.ResourceID)
	return nil
}

// move has no remote primitive, so it is a delete followed by a create. It is
// not atomic: if the create fails after the delete went through, the event is
// gone from the provider. No rollback is attempted and nothing is read back
// between the two calls.
func (s *Syncer) move(ctx context.Context, from, to, eventID string, payload models.RemoteEventPayload) error {
	if err := s.client.Delete(ctx, from, eventID); err != nil {
		return &MoveError{EventID: eventID, From: from, To: to, Phase: PhaseDelete, Err: err}
	}
	if err := s.client.Create(ctx, to, payload); err != nil {
		moveErr := &MoveError{EventID: eventID, From: from, To: to, Phase: PhaseCreate, Deleted: true, Err: err}
		s.logger.Error("Event lost during move", "error", moveErr)
		return moveErr
	}
	return nil
}

func (s *Syncer) fail(kind Kind, err error) error {
	s.logger.Error(kind.Message(), "error", err)
	s.store.SetError(kind.Message())
	return &Failure{Kind: kind, Err: err}
}
