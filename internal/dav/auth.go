package dav

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"unical/internal/provider"
)

// Authenticator logs in to a CalDAV server. The login code is
// "username:app-specific-password".
type Authenticator struct {
	logger   *slog.Logger
	endpoint string
	color    string
}

func NewAuthenticator(logger *slog.Logger, endpoint, color string) *Authenticator {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Authenticator{logger: logger, endpoint: endpoint, color: color}
}

func (a *Authenticator) Authenticate(ctx context.Context, _, code string) (provider.Provider, error) {
	username, password, err := splitCredentials(code)
	if err != nil {
		return nil, err
	}
	return NewClient(context.WithoutCancel(ctx), a.logger, a.endpoint, username, password, a.color)
}

func splitCredentials(code string) (string, string, error) {
	username, password, ok := strings.Cut(code, ":")
	if !ok || username == "" || password == "" {
		return "", "", errors.New("login code must be username:password")
	}
	return username, password, nil
}
