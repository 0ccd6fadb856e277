package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unical/internal/models"
	"unical/internal/provider"
)

const body = `{"summary":"Demo","location":" ","start":{"dateTime":"2024-05-01T09:00:00+02:00","timeZone":"Africa/Johannesburg"},"end":{"dateTime":"2024-05-01T10:00:00+02:00","timeZone":"Africa/Johannesburg"}}`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, auth provider.Authenticator) *httptest.Server {
	t.Helper()
	s, err := New(context.Background(), discard(), auth)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url, key, reqBody string) (int, string) {
	t.Helper()
	var r io.Reader
	if reqBody != "" {
		r = strings.NewReader(reqBody)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Token "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func login(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	status, out := call(t, http.MethodPost, ts.URL+"/login/", "", `{"code":"abc"}`)
	require.Equal(t, http.StatusOK, status, out)
	var resp struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Key)
	return resp.Key
}

func TestEventsRequireKey(t *testing.T) {
	ts := newTestServer(t, provider.MemoryAuthenticator{Provider: provider.NewMemory()})

	status, _ := call(t, http.MethodGet, ts.URL+"/events/", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, http.MethodGet, ts.URL+"/events/", "not-issued", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginValidation(t *testing.T) {
	ts := newTestServer(t, provider.MemoryAuthenticator{Provider: provider.NewMemory()})

	status, _ := call(t, http.MethodPost, ts.URL+"/login/", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, http.MethodPost, ts.URL+"/login/", "", `nope`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCRUD(t *testing.T) {
	mem := provider.NewMemory(
		models.RemoteCalendar{ID: "team/cal", Summary: "Team", BackgroundColor: "#123456"},
		models.RemoteCalendar{ID: "me@example.com", Summary: "Me", BackgroundColor: "#654321"},
	)
	ts := newTestServer(t, provider.MemoryAuthenticator{Provider: mem})
	key := login(t, ts)

	status, out := call(t, http.MethodPost, ts.URL+"/events/team%2Fcal/create/", key, body)
	require.Equal(t, http.StatusCreated, status, out)
	var created models.RemoteEvent
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "team/cal", created.CalendarID)
	assert.Equal(t, "Demo", created.Summary)

	edited := strings.Replace(body, "Demo", "Demo v2", 1)
	status, out = call(t, http.MethodPut, ts.URL+"/events/team%2Fcal/"+created.ID+"/edit/", key, edited)
	require.Equal(t, http.StatusOK, status, out)

	status, out = call(t, http.MethodGet, ts.URL+"/events/", key, "")
	require.Equal(t, http.StatusOK, status)
	var list models.ListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list.Calendars, 2)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Demo v2", list.Events[0].Summary)

	status, _ = call(t, http.MethodDelete, ts.URL+"/events/team%2Fcal/"+created.ID+"/delete/", key, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, mem.Events("team/cal"))
}

func TestEmptyListIsArrays(t *testing.T) {
	ts := newTestServer(t, provider.MemoryAuthenticator{Provider: provider.NewMemory()})
	key := login(t, ts)

	status, out := call(t, http.MethodGet, ts.URL+"/events/", key, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"events":[],"calendars":[]}`, out)
}

func TestWriteErrors(t *testing.T) {
	mem := provider.NewMemory(models.RemoteCalendar{ID: "cal-1"})
	ts := newTestServer(t, provider.MemoryAuthenticator{Provider: mem})
	key := login(t, ts)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/events/cal-1/create/", "{", http.StatusBadRequest},
		{"bad dates", http.MethodPost, "/events/cal-1/create/", `{"summary":"x","start":{"dateTime":"soon"},"end":{"dateTime":"later"}}`, http.StatusBadRequest},
		{"unknown calendar", http.MethodPost, "/events/nope/create/", body, http.StatusNotFound},
		{"unknown event edit", http.MethodPut, "/events/cal-1/missing/edit/", body, http.StatusNotFound},
		{"unknown event delete", http.MethodDelete, "/events/cal-1/missing/delete/", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := call(t, tt.method, ts.URL+tt.path, key, tt.body)
			assert.Equal(t, tt.want, status)
		})
	}
}

type failingProvider struct{ *provider.Memory }

func (failingProvider) List(context.Context) ([]models.RemoteCalendar, []models.RemoteEvent, error) {
	return nil, nil, errors.New("quota exceeded")
}

type staticAuth struct{ p provider.Provider }

func (a staticAuth) Authenticate(context.Context, string, string) (provider.Provider, error) {
	return a.p, nil
}

func TestListProviderFailure(t *testing.T) {
	ts := newTestServer(t, staticAuth{p: &failingProvider{}})
	key := login(t, ts)

	status, out := call(t, http.MethodGet, ts.URL+"/events/", key, "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, out, "quota")
}

type restoringAuth struct {
	staticAuth
	keys map[string]provider.Provider
}

func (a restoringAuth) Restore(context.Context) (map[string]provider.Provider, error) {
	return a.keys, nil
}

func TestRestoredKeys(t *testing.T) {
	mem := provider.NewMemory()
	ts := newTestServer(t, restoringAuth{keys: map[string]provider.Provider{"persisted": mem}})

	status, _ := call(t, http.MethodGet, ts.URL+"/events/", "persisted", "")
	assert.Equal(t, http.StatusOK, status)
}
