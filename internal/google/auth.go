package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"unical/internal/provider"
)

const (
	credentialsFile = "credentials.json"

	// DefaultRedirectURL is the out-of-band redirect for the desktop flow.
	DefaultRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

	// calendarEventsOwnedScope lets the app write only to calendars the user owns.
	calendarEventsOwnedScope = "https://www.googleapis.com/auth/calendar.events.owned"
)

// Scopes requested at sign-in.
var Scopes = []string{
	calendar.CalendarEventsReadonlyScope,
	calendar.CalendarReadonlyScope,
	calendarEventsOwnedScope,
}

// GetOAuthConfigForAuthFlow is used by the login command to build the consent URL.
func GetOAuthConfigForAuthFlow(clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret, redirectURL)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit credentials over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = redirectURL
	return config, nil
}

// Authenticator exchanges authorization codes for Google tokens and keeps each
// token on disk under the API key it was issued for.
type Authenticator struct {
	logger   *slog.Logger
	config   *oauth2.Config
	tokenDir string
}

func NewAuthenticator(logger *slog.Logger, clientID, clientSecret, redirectURL, tokenDir string) (*Authenticator, error) {
	config, err := getOAuthConfig(clientID, clientSecret, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}
	if err := os.MkdirAll(tokenDir, 0o700); err != nil {
		return nil, fmt.Errorf("create token dir %s: %w", tokenDir, err)
	}
	return &Authenticator{logger: logger, config: config, tokenDir: tokenDir}, nil
}

// Authenticate exchanges code and returns a client for the account.
func (a *Authenticator) Authenticate(ctx context.Context, key, code string) (provider.Provider, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if err := SaveToken(a.tokenPath(key), token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return a.client(ctx, token)
}

// Restore rebuilds a client for every token saved earlier.
func (a *Authenticator) Restore(ctx context.Context) (map[string]provider.Provider, error) {
	keys, err := GetTokenAccounts(a.tokenDir)
	if err != nil {
		return nil, fmt.Errorf("list saved tokens: %w", err)
	}

	out := make(map[string]provider.Provider, len(keys))
	for _, key := range keys {
		token, err := tokenFromFile(a.tokenPath(key))
		if err != nil {
			a.logger.Warn("Skipping unreadable token file", "error", err)
			continue
		}
		p, err := a.client(ctx, token)
		if err != nil {
			return nil, err
		}
		out[key] = p
	}
	return out, nil
}

func (a *Authenticator) client(ctx context.Context, token *oauth2.Token) (*CalendarClient, error) {
	// The HTTP client outlives the login request, so it must not use its context.
	httpClient := a.config.Client(context.WithoutCancel(ctx), token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return NewCalendarClient(a.logger, service), nil
}

func (a *Authenticator) tokenPath(key string) string {
	return filepath.Join(a.tokenDir, "token-"+key+".json")
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the keys that have a token file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
