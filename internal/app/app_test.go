package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unical/internal/models"
	"unical/internal/provider"
	"unical/internal/remote"
	"unical/internal/server"
	"unical/internal/session"
	"unical/internal/syncer"
	"unical/internal/widget"
)

// callLog records every request that reaches the backend, in order, and can
// fail selected ones.
type callLog struct {
	mu    sync.Mutex
	calls []string
	fail  func(method, path string) bool
	next  http.Handler
}

func (c *callLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entry := r.Method + " " + r.URL.EscapedPath()
	c.mu.Lock()
	c.calls = append(c.calls, entry)
	fail := c.fail != nil && c.fail(r.Method, r.URL.EscapedPath())
	c.mu.Unlock()
	if fail {
		http.Error(w, `{"detail":"upstream unavailable"}`, http.StatusBadGateway)
		return
	}
	c.next.ServeHTTP(w, r)
}

func (c *callLog) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, call := range c.calls {
		if strings.HasPrefix(call, "GET ") || strings.HasSuffix(call, "/login/") {
			continue
		}
		out = append(out, call)
	}
	return out
}

type fixture struct {
	app *App
	mem *provider.Memory
	log *callLog
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := provider.NewMemory(
		models.RemoteCalendar{ID: "cal-1", Summary: "Work", BackgroundColor: "#ff0000"},
		models.RemoteCalendar{ID: "cal-2", Summary: "Home", BackgroundColor: "#00ff00"},
	)
	require.NoError(t, mem.Seed(models.RemoteEvent{
		ID: "ev1", Summary: "Standup", CalendarID: "cal-1",
		Start: models.EventDateTime{DateTime: "2024-05-01T09:00:00+02:00", TimeZone: "Africa/Johannesburg"},
		End:   models.EventDateTime{DateTime: "2024-05-01T09:15:00+02:00", TimeZone: "Africa/Johannesburg"},
	}))
	require.NoError(t, mem.Seed(models.RemoteEvent{
		ID: "ev2", Summary: "Groceries", CalendarID: "cal-2",
		Start: models.EventDateTime{DateTime: "2024-05-01T18:00:00+02:00", TimeZone: "Africa/Johannesburg"},
		End:   models.EventDateTime{DateTime: "2024-05-01T19:00:00+02:00", TimeZone: "Africa/Johannesburg"},
	}))

	srv, err := server.New(context.Background(), discard(), provider.MemoryAuthenticator{Provider: mem})
	require.NoError(t, err)
	log := &callLog{next: srv.Handler()}
	ts := httptest.NewServer(log)
	t.Cleanup(ts.Close)

	sess := session.New()
	a := New(discard(), sess, remote.NewHTTPClient(discard(), ts.URL, sess))
	require.NoError(t, a.SignIn(context.Background(), "auth-code"))
	return &fixture{app: a, mem: mem, log: log}
}

func record(id, name, start, end, resource string) widget.Record {
	return widget.Record{ID: id, Name: name, StartDate: start, EndDate: end, ResourceID: resource}
}

func saved(data, original widget.Record) widget.Notification {
	return widget.Notification{
		Type:        widget.TypeAfterEventSave,
		EventRecord: widget.EventRecord{Data: data, OriginalData: original},
	}
}

// Scenario A
func TestInitialLoad(t *testing.T) {
	f := newFixture(t)

	snap := f.app.Store().Snapshot()
	require.Len(t, snap.Events, 2)
	require.Len(t, snap.Resources, 2)
	resources := map[string]bool{}
	for _, r := range snap.Resources {
		resources[r.ID] = true
	}
	for _, e := range snap.Events {
		assert.True(t, resources[e.ResourceID])
	}
	assert.True(t, f.app.Authenticated())
	assert.False(t, snap.Busy)
}

// Scenario B
func TestCreateOnCalendar(t *testing.T) {
	f := newFixture(t)
	rec := record("_generated5", "Dentist", "2024-05-02T10:00:00+02:00", "2024-05-02T11:00:00+02:00", "cal-1")

	require.NoError(t, f.app.Notify(context.Background(), saved(rec, rec)))

	assert.Equal(t, []string{"POST /events/cal-1/create/"}, f.log.writes())
	require.Len(t, f.mem.Events("cal-1"), 2)
	assert.Equal(t, "Dentist", f.mem.Events("cal-1")[1].Summary)
	assert.Equal(t, "Africa/Johannesburg", f.mem.Events("cal-1")[1].Start.TimeZone)
}

// Scenario C
func TestEditTitleOnly(t *testing.T) {
	f := newFixture(t)
	before := record("ev1", "Standup", "2024-05-01T09:00:00+02:00", "2024-05-01T09:15:00+02:00", "cal-1")
	after := before
	after.Name = "Daily standup"

	require.NoError(t, f.app.Notify(context.Background(), saved(after, before)))

	assert.Equal(t, []string{"PUT /events/cal-1/ev1/edit/"}, f.log.writes())
	require.Len(t, f.mem.Events("cal-1"), 1)
	assert.Equal(t, "Daily standup", f.mem.Events("cal-1")[0].Summary)
}

// Scenario D
func TestMoveBetweenCalendars(t *testing.T) {
	f := newFixture(t)
	before := record("ev1", "Standup", "2024-05-01T09:00:00+02:00", "2024-05-01T09:15:00+02:00", "cal-1")
	after := before
	after.ResourceID = "cal-2"

	require.NoError(t, f.app.Notify(context.Background(), saved(after, before)))

	assert.Equal(t, []string{
		"DELETE /events/cal-1/ev1/delete/",
		"POST /events/cal-2/create/",
	}, f.log.writes())
	assert.Empty(t, f.mem.Events("cal-1"))
	require.Len(t, f.mem.Events("cal-2"), 2)
	moved := f.mem.Events("cal-2")[1]
	assert.Equal(t, "Standup", moved.Summary)
	assert.NotEqual(t, "ev1", moved.ID)
}

// Scenario E
func TestMoveCreateFailureLosesEvent(t *testing.T) {
	f := newFixture(t)
	f.log.mu.Lock()
	f.log.fail = func(method, path string) bool {
		return method == http.MethodPost && path == "/events/cal-2/create/"
	}
	f.log.mu.Unlock()
	before := record("ev1", "Standup", "2024-05-01T09:00:00+02:00", "2024-05-01T09:15:00+02:00", "cal-1")
	after := before
	after.ResourceID = "cal-2"

	err := f.app.Notify(context.Background(), saved(after, before))

	var failure *syncer.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, syncer.EditFailure, failure.Kind)
	assert.Equal(t, "Failed to edit event", f.app.Store().Snapshot().Error)

	for _, cal := range []string{"cal-1", "cal-2"} {
		for _, e := range f.mem.Events(cal) {
			assert.NotEqual(t, "Standup", e.Summary, "event still present in %s", cal)
		}
	}
	assert.Equal(t, []string{
		"DELETE /events/cal-1/ev1/delete/",
		"POST /events/cal-2/create/",
	}, f.log.writes())
}

func TestOtherNotificationsIgnored(t *testing.T) {
	f := newFixture(t)
	n := saved(record("ev1", "x", "", "", "cal-1"), widget.Record{})
	n.Type = "eventclick"

	require.NoError(t, f.app.Notify(context.Background(), n))
	assert.Empty(t, f.log.writes())
}

func TestSignInFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad code"}`, http.StatusBadRequest)
	}))
	t.Cleanup(ts.Close)
	sess := session.New()
	a := New(discard(), sess, remote.NewHTTPClient(discard(), ts.URL, sess))

	err := a.SignIn(context.Background(), "wrong")

	var failure *syncer.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, syncer.AuthenticationFailure, failure.Kind)
	assert.False(t, a.Authenticated())
	assert.Equal(t, "Authentication failure", a.Store().Snapshot().Error)
	assert.False(t, a.Store().Busy())
}

func TestNotAuthenticatedEditFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.SignOut())
	rec := record("_generated1", "Offline", "2024-05-02T10:00:00+02:00", "2024-05-02T11:00:00+02:00", "cal-1")

	err := f.app.Notify(context.Background(), saved(rec, rec))

	var failure *syncer.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, syncer.CreateFailure, failure.Kind)
	assert.ErrorIs(t, err, remote.ErrNotAuthenticated)
	assert.Empty(t, f.log.writes())
}

func TestStartWithRestoredSession(t *testing.T) {
	f := newFixture(t)
	sess := session.New()
	tok, _ := f.app.session.Token()
	require.NoError(t, sess.SignIn(tok))

	again := New(discard(), sess, f.app.backend)
	require.NoError(t, again.Start(context.Background()))
	assert.Len(t, again.Store().Snapshot().Events, 2)

	idle := New(discard(), session.New(), f.app.backend)
	require.NoError(t, idle.Start(context.Background()))
	assert.Empty(t, idle.Store().Snapshot().Events)
}
