package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"unical/internal/models"
	"unical/internal/provider"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, mux *http.ServeMux) *CalendarClient {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	service, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(ts.Client()),
		option.WithEndpoint(ts.URL+"/"),
	)
	require.NoError(t, err)
	return NewCalendarClient(discard(), service)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListOwnedCalendarsOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "primary@example.com", Summary: "Me", BackgroundColor: "#9fe1e7", AccessRole: "owner"},
			{Id: "holidays", Summary: "Holidays", BackgroundColor: "#16a765", AccessRole: "reader"},
		}})
	})
	mux.HandleFunc("GET /calendars/primary@example.com/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, calendar.Events{Items: []*calendar.Event{
			{Id: "e1", Summary: "Timed",
				Start: &calendar.EventDateTime{DateTime: "2024-05-01T09:00:00+02:00", TimeZone: "Africa/Johannesburg"},
				End:   &calendar.EventDateTime{DateTime: "2024-05-01T10:00:00+02:00", TimeZone: "Africa/Johannesburg"}},
			{Id: "e2", Summary: "All day",
				Start: &calendar.EventDateTime{Date: "2024-05-02"},
				End:   &calendar.EventDateTime{Date: "2024-05-03"}},
		}})
	})
	mux.HandleFunc("GET /calendars/holidays/events", func(w http.ResponseWriter, r *http.Request) {
		t.Error("events of a non-owned calendar were requested")
	})
	c := newTestClient(t, mux)

	calendars, events, err := c.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.RemoteCalendar{{ID: "primary@example.com", Summary: "Me", BackgroundColor: "#9fe1e7"}}, calendars)
	require.Len(t, events, 1)
	assert.Equal(t, models.RemoteEvent{
		ID:         "e1",
		Summary:    "Timed",
		Start:      models.EventDateTime{DateTime: "2024-05-01T09:00:00+02:00", TimeZone: "Africa/Johannesburg"},
		End:        models.EventDateTime{DateTime: "2024-05-01T10:00:00+02:00", TimeZone: "Africa/Johannesburg"},
		CalendarID: "primary@example.com",
	}, events[0])
}

func TestInsertUpdateDelete(t *testing.T) {
	var inserted, updated calendar.Event
	deleted := false

	mux := http.NewServeMux()
	mux.HandleFunc("POST /calendars/cal-1/events", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&inserted))
		ev := inserted
		ev.Id = "new-id"
		writeJSON(w, ev)
	})
	mux.HandleFunc("PUT /calendars/cal-1/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
		ev := updated
		ev.Id = "ev1"
		writeJSON(w, ev)
	})
	mux.HandleFunc("DELETE /calendars/cal-1/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /calendars/cal-1/events/gone", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Not Found"}}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	payload := models.RemoteEventPayload{
		Summary:  "Review",
		Location: " ",
		Start:    models.EventDateTime{DateTime: "2024-05-01T09:00:00+02:00", TimeZone: "Africa/Johannesburg"},
		End:      models.EventDateTime{DateTime: "2024-05-01T10:00:00+02:00", TimeZone: "Africa/Johannesburg"},
	}

	created, err := c.Insert(ctx, "cal-1", payload)
	require.NoError(t, err)
	assert.Equal(t, "new-id", created.ID)
	assert.Equal(t, "cal-1", created.CalendarID)
	assert.Equal(t, "Review", inserted.Summary)
	assert.Equal(t, " ", inserted.Location)
	assert.Equal(t, "Africa/Johannesburg", inserted.Start.TimeZone)

	_, err = c.Update(ctx, "cal-1", "ev1", payload)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00+02:00", updated.End.DateTime)

	require.NoError(t, c.Delete(ctx, "cal-1", "ev1"))
	assert.True(t, deleted)

	err = c.Delete(ctx, "cal-1", "gone")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestTokenFiles(t *testing.T) {
	dir := t.TempDir()
	token := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, SaveToken(filepath.Join(dir, "token-k1.json"), token))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	accounts, err := GetTokenAccounts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, accounts)

	got, err := tokenFromFile(filepath.Join(dir, "token-k1.json"))
	require.NoError(t, err)
	assert.Equal(t, "rt", got.RefreshToken)
	assert.True(t, token.Expiry.Equal(got.Expiry))

	info, err := os.Stat(filepath.Join(dir, "token-k1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAuthenticator(discard(), "id", "secret", "", dir)
	require.NoError(t, err)
	require.NoError(t, SaveToken(a.tokenPath("k1"), &oauth2.Token{AccessToken: "at"}))

	restored, err := a.Restore(context.Background())
	require.NoError(t, err)
	assert.Contains(t, restored, "k1")
	assert.Len(t, restored, 1)
}

func TestOAuthConfig(t *testing.T) {
	config, err := GetOAuthConfigForAuthFlow("id", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRedirectURL, config.RedirectURL)
	assert.Equal(t, Scopes, config.Scopes)
	assert.Contains(t, config.AuthCodeURL("state"), "calendar.events.owned")
}
