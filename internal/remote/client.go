// Package remote talks to the calendar backend: list, create, update and
// delete of events scoped to a calendar id.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"unical/internal/models"
)

// Client is the set of remote operations the sync controller issues.
type Client interface {
	List(ctx context.Context) (*models.ListResponse, error)
	Create(ctx context.Context, calendarID string, payload models.RemoteEventPayload) error
	Update(ctx context.Context, calendarID, eventID string, payload models.RemoteEventPayload) error
	Delete(ctx context.Context, calendarID, eventID string) error
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, truncate(e.Body, 220))
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, statusCode int) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == statusCode
}

// HTTPClient implements Client against the backend's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the backend at baseURL. Requests carry the
// key held by tokens.
func NewHTTPClient(logger *slog.Logger, baseURL string, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Transport: &tokenTransport{
			Tokens:    tokens,
			Transport: http.DefaultTransport,
			Logger:    logger,
		}},
		logger: logger,
	}
}

// Login trades an authorization code for a backend API key.
func (c *HTTPClient) Login(ctx context.Context, code string) (string, error) {
	var resp struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/login/", map[string]string{"code": code}, &resp); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp.Key == "" {
		return "", errors.New("login: empty key in response")
	}
	return resp.Key, nil
}

func (c *HTTPClient) List(ctx context.Context) (*models.ListResponse, error) {
	var resp models.ListResponse
	if err := c.do(ctx, http.MethodGet, "/events/", nil, &resp); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) Create(ctx context.Context, calendarID string, payload models.RemoteEventPayload) error {
	p := "/events/" + url.PathEscape(calendarID) + "/create/"
	if err := c.do(ctx, http.MethodPost, p, payload, nil); err != nil {
		return fmt.Errorf("create event in %s: %w", calendarID, err)
	}
	return nil
}

func (c *HTTPClient) Update(ctx context.Context, calendarID, eventID string, payload models.RemoteEventPayload) error {
	p := "/events/" + url.PathEscape(calendarID) + "/" + url.PathEscape(eventID) + "/edit/"
	if err := c.do(ctx, http.MethodPut, p, payload, nil); err != nil {
		return fmt.Errorf("update event %s in %s: %w", eventID, calendarID, err)
	}
	return nil
}

func (c *HTTPClient) Delete(ctx context.Context, calendarID, eventID string) error {
	p := "/events/" + url.PathEscape(calendarID) + "/" + url.PathEscape(eventID) + "/delete/"
	if err := c.do(ctx, http.MethodDelete, p, nil, nil); err != nil {
		return fmt.Errorf("delete event %s from %s: %w", eventID, calendarID, err)
	}
	return nil
}

// do sends body as JSON and decodes the answer into out when out is non-nil.
// escapedPath must already be percent-encoded.
func (c *HTTPClient) do(ctx context.Context, method, escapedPath string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode json body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+escapedPath, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode json response: %w", err)
	}
	return nil
}

func truncate(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "…"
}
