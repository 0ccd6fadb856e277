package remote

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ErrNotAuthenticated is returned for any request other than login while no
// session is active.
var ErrNotAuthenticated = errors.New("user not authenticated")

// TokenSource hands the current API key to the transport.
type TokenSource interface {
	Token() (string, bool)
}

// tokenTransport adds the session key to each request.
type tokenTransport struct {
	Tokens    TokenSource
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// RoundTrip refuses to send without a session, except for login.
func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.Logger.Debug("outgoing request", "method", req.Method, "url", req.URL.String())

	if strings.HasSuffix(req.URL.Path, "/login/") {
		return t.Transport.RoundTrip(req)
	}

	token, ok := t.Tokens.Token()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("User-Agent", "unical/1.0")
	return t.Transport.RoundTrip(req)
}
