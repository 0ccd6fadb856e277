// Package web is the local HTTP bridge the calendar widget talks to: it
// renders the UI state and forwards save notifications to the app.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"unical/internal/models"
	"unical/internal/state"
	"unical/internal/syncer"
	"unical/internal/widget"
)

const maxBodyBytes = 1 << 20

// Controller is what the bridge needs from the app.
type Controller interface {
	Store() *state.Store
	Authenticated() bool
	SignIn(ctx context.Context, code string) error
	SignOut() error
	Notify(ctx context.Context, n widget.Notification) error
}

type Server struct {
	logger *slog.Logger
	app    Controller
	mux    *http.ServeMux
}

func NewServer(logger *slog.Logger, app Controller) *Server {
	s := &Server{logger: logger, app: app, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	s.logger.Info("Starting widget bridge.", "listen", "http://"+addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/notify", s.handleNotify)
	s.mux.HandleFunc("POST /api/signin", s.handleSignIn)
	s.mux.HandleFunc("POST /api/signout", s.handleSignOut)
}

// stateResponse is the widget's view of the store.
type stateResponse struct {
	Authenticated bool                `json:"authenticated"`
	Busy          bool                `json:"busy"`
	Error         string              `json:"error,omitempty"`
	Events        []widget.Record     `json:"events"`
	Resources     []models.UIResource `json:"resources"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	n, err := widget.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.Notify(r.Context(), n); err != nil {
		s.fail(w, "notify", err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	if err := s.app.SignIn(r.Context(), req.Code); err != nil {
		s.fail(w, "signin", err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	if err := s.app.SignOut(); err != nil {
		s.fail(w, "signout", err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// fail reports sync failures with their user-facing message. Any other notify
// error is a malformed record.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var failure *syncer.Failure
	if errors.As(err, &failure) {
		s.logger.Warn("Request failed", "op", op, "failure", failure.Error(), "error", failure.Err)
		writeError(w, http.StatusBadGateway, failure.Error())
		return
	}
	s.logger.Error("Request failed", "op", op, "error", err)
	if op == "notify" {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) state() stateResponse {
	snap := s.app.Store().Snapshot()
	records := make([]widget.Record, 0, len(snap.Events))
	for _, e := range snap.Events {
		records = append(records, widget.FromUIEvent(e))
	}
	resources := snap.Resources
	if resources == nil {
		resources = []models.UIResource{}
	}
	return stateResponse{
		Authenticated: s.app.Authenticated(),
		Busy:          snap.Busy,
		Error:         snap.Error,
		Events:        records,
		Resources:     resources,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
