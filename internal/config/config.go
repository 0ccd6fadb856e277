// Package config resolves runtime settings from .env files, the environment
// and an optional config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "UNICAL"

// Providers the backend can serve.
const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
	ProviderMemory = "memory"
)

type Runtime struct {
	ConfigFile string
	LogLevel   string

	// Client side.
	BackendURL  string
	SessionFile string
	UIListen    string

	// Backend side.
	Listen             string
	Provider           string
	TokenDir           string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	CalDAVEndpoint     string
	CalDAVColor        string
}

func Load() (Runtime, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return Runtime{}, fmt.Errorf("resolve home dir: %w", err)
	}
	xdgState := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}
	stateDir := filepath.Join(xdgState, "unical")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	_ = v.BindEnv("google_client_id", "UNICAL_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google_client_secret", "UNICAL_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	_ = v.BindEnv("log_level", "UNICAL_LOG_LEVEL", "LOG_LEVEL")

	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("session_file", filepath.Join(stateDir, "session.json"))
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", "127.0.0.1:8000")
	v.SetDefault("ui_listen", "127.0.0.1:8080")
	v.SetDefault("provider", ProviderGoogle)
	v.SetDefault("token_dir", filepath.Join(stateDir, "tokens"))
	v.SetDefault("google_redirect_url", "")
	v.SetDefault("caldav_endpoint", "https://caldav.icloud.com/")
	v.SetDefault("caldav_color", "")

	configFile := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG_FILE"))
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Runtime{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	provider := strings.ToLower(strings.TrimSpace(v.GetString("provider")))
	switch provider {
	case ProviderGoogle, ProviderCalDAV, ProviderMemory:
	default:
		return Runtime{}, fmt.Errorf("unknown provider %q", provider)
	}

	return Runtime{
		ConfigFile:         configFile,
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		BackendURL:         strings.TrimSuffix(strings.TrimSpace(v.GetString("backend_url")), "/"),
		SessionFile:        strings.TrimSpace(v.GetString("session_file")),
		UIListen:           strings.TrimSpace(v.GetString("ui_listen")),
		Listen:             strings.TrimSpace(v.GetString("listen")),
		Provider:           provider,
		TokenDir:           strings.TrimSpace(v.GetString("token_dir")),
		GoogleClientID:     strings.TrimSpace(v.GetString("google_client_id")),
		GoogleClientSecret: strings.TrimSpace(v.GetString("google_client_secret")),
		GoogleRedirectURL:  strings.TrimSpace(v.GetString("google_redirect_url")),
		CalDAVEndpoint:     strings.TrimSpace(v.GetString("caldav_endpoint")),
		CalDAVColor:        strings.TrimSpace(v.GetString("caldav_color")),
	}, nil
}
