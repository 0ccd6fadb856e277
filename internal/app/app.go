package app

import (
	"context"
	"fmt"
	"log/slog"

	"unical/internal/remote"
	"unical/internal/session"
	"unical/internal/state"
	"unical/internal/syncer"
	"unical/internal/widget"
)

// Backend is the remote client plus the login exchange.
type Backend interface {
	remote.Client
	Login(ctx context.Context, code string) (string, error)
}

// App ties the session, the sync controller and the UI state together.
type App struct {
	logger  *slog.Logger
	session *session.Session
	backend Backend
	store   *state.Store
	syncer  *syncer.Syncer
}

func New(logger *slog.Logger, sess *session.Session, backend Backend) *App {
	store := state.NewStore()
	return &App{
		logger:  logger,
		session: sess,
		backend: backend,
		store:   store,
		syncer:  syncer.NewSyncer(logger, backend, store),
	}
}

func (a *App) Store() *state.Store {
	return a.store
}

func (a *App) Authenticated() bool {
	return a.session.IsAuthenticated()
}

// Start loads events when a session was restored from disk.
func (a *App) Start(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		a.logger.Info("No active session.")
		return nil
	}
	return a.syncer.Load(ctx)
}

// SignIn exchanges an authorization code for a session and performs the
// initial load.
func (a *App) SignIn(ctx context.Context, code string) error {
	err := a.signIn(ctx, code)
	if err != nil {
		failure := &syncer.Failure{Kind: syncer.AuthenticationFailure, Err: err}
		a.logger.Error("Sign-in failed", "error", err)
		a.store.SetError(failure.Error())
		return failure
	}
	return a.syncer.Load(ctx)
}

func (a *App) signIn(ctx context.Context, code string) error {
	release := a.store.Acquire()
	defer release()

	key, err := a.backend.Login(ctx, code)
	if err != nil {
		return err
	}
	return a.session.SignIn(key)
}

func (a *App) SignOut() error {
	if err := a.session.SignOut(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	a.logger.Info("Signed out.")
	return nil
}

// Notify handles one widget notification. Types other than after-save are
// ignored.
func (a *App) Notify(ctx context.Context, n widget.Notification) error {
	intent, ok, err := n.Intent()
	if err != nil {
		return fmt.Errorf("widget notification: %w", err)
	}
	if !ok {
		a.logger.Debug("Ignoring widget notification.", "type", n.Type)
		return nil
	}
	return a.syncer.Apply(ctx, intent)
}
