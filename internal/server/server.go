// Package server is the calendar backend: it authenticates users against a
// calendar provider and exposes their events over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"unical/internal/models"
	"unical/internal/provider"
)

// ErrUnknownKey means the request carried no key or one the server never issued.
var ErrUnknownKey = errors.New("invalid token")

// Server serves the events API.
type Server struct {
	logger *slog.Logger
	auth   provider.Authenticator
	mux    *http.ServeMux

	mu   sync.RWMutex
	keys map[string]provider.Provider
}

// New creates a Server. If auth also implements provider.Restorer, keys it
// persisted earlier are accepted again.
func New(ctx context.Context, logger *slog.Logger, auth provider.Authenticator) (*Server, error) {
	s := &Server{
		logger: logger,
		auth:   auth,
		mux:    http.NewServeMux(),
		keys:   make(map[string]provider.Provider),
	}

	if r, ok := auth.(provider.Restorer); ok {
		restored, err := r.Restore(ctx)
		if err != nil {
			return nil, fmt.Errorf("restore keys: %w", err)
		}
		for k, p := range restored {
			s.keys[k] = p
		}
		logger.Info("Restored API keys.", "count", len(restored))
	}

	s.registerRoutes()
	return s, nil
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	s.logger.Info("Starting HTTP server.", "listen", "http://"+addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /login/", s.handleLogin)
	s.mux.HandleFunc("GET /events/{$}", s.withProvider(s.handleList))
	s.mux.HandleFunc("POST /events/{calendarId}/create/", s.withProvider(s.handleCreate))
	s.mux.HandleFunc("PUT /events/{calendarId}/{eventId}/edit/", s.withProvider(s.handleEdit))
	s.mux.HandleFunc("DELETE /events/{calendarId}/{eventId}/delete/", s.withProvider(s.handleDelete))
}

type providerHandler func(w http.ResponseWriter, r *http.Request, p provider.Provider)

// withProvider resolves the "Authorization: Token <key>" header.
func (s *Server) withProvider(next providerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.lookup(r.Header.Get("Authorization"))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid token.")
			return
		}
		next(w, r, p)
	}
}

func (s *Server) lookup(header string) (provider.Provider, error) {
	key, ok := strings.CutPrefix(header, "Token ")
	if !ok || key == "" {
		return nil, ErrUnknownKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.keys[key]
	if !ok {
		return nil, ErrUnknownKey
	}
	return p, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeDetail(w, http.StatusBadRequest, "Missing code.")
		return
	}

	key := uuid.New().String()
	p, err := s.auth.Authenticate(r.Context(), key, body.Code)
	if err != nil {
		s.logger.Warn("Login failed", "error", err)
		writeDetail(w, http.StatusBadRequest, "Could not authenticate with the calendar provider.")
		return
	}

	s.mu.Lock()
	s.keys[key] = p
	s.mu.Unlock()

	s.logger.Info("Issued API key.")
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, p provider.Provider) {
	calendars, events, err := p.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list events and calendars", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to list events and calendars")
		return
	}
	if calendars == nil {
		calendars = []models.RemoteCalendar{}
	}
	if events == nil {
		events = []models.RemoteEvent{}
	}
	writeJSON(w, http.StatusOK, models.ListResponse{Events: events, Calendars: calendars})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, p provider.Provider) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}
	calendarID := r.PathValue("calendarId")

	created, err := p.Insert(r.Context(), calendarID, payload)
	if err != nil {
		s.providerError(w, "create", err)
		return
	}
	s.logger.Info("Event created", "calendarID", calendarID, "eventID", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, p provider.Provider) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}
	calendarID, eventID := r.PathValue("calendarId"), r.PathValue("eventId")

	updated, err := p.Update(r.Context(), calendarID, eventID, payload)
	if err != nil {
		s.providerError(w, "edit", err)
		return
	}
	s.logger.Info("Event edited", "calendarID", calendarID, "eventID", eventID)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, p provider.Provider) {
	calendarID, eventID := r.PathValue("calendarId"), r.PathValue("eventId")

	if err := p.Delete(r.Context(), calendarID, eventID); err != nil {
		s.providerError(w, "delete", err)
		return
	}
	s.logger.Info("Event deleted", "calendarID", calendarID, "eventID", eventID)
	writeDetail(w, http.StatusOK, "Event deleted")
}

func (s *Server) providerError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("Provider call failed", "op", op, "error", err)
	if errors.Is(err, provider.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
}

func decodePayload(w http.ResponseWriter, r *http.Request) (models.RemoteEventPayload, bool) {
	var payload models.RemoteEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed event body.")
		return payload, false
	}
	if err := provider.ValidatePayload(payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return payload, false
	}
	return payload, true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("incoming request", "method", r.Method, "path", r.URL.EscapedPath())
		next.ServeHTTP(w, r)
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
