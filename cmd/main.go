package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"unical/internal/app"
	"unical/internal/config"
	"unical/internal/dav"
	"unical/internal/google"
	"unical/internal/models"
	"unical/internal/provider"
	"unical/internal/remote"
	"unical/internal/server"
	"unical/internal/session"
	"unical/internal/web"
	"unical/internal/widget"
)

func main() {
	cliApp := &cli.App{
		Name:  "unical",
		Usage: "Keep a calendar widget in sync with Google Calendar or CalDAV.",
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			logoutCommand(),
			eventsCommand(),
			applyCommand(),
			uiCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// loadRuntime loads the configuration and the logger every command starts with.
func loadRuntime() (config.Runtime, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Runtime{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the calendar backend.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Address to listen on. Overrides UNICAL_LISTEN."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if c.IsSet("listen") {
				cfg.Listen = c.String("listen")
			}

			auth, err := newAuthenticator(logger, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, logger, auth)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			logger.Info("Serving calendars.", "provider", cfg.Provider)
			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}
}

func newAuthenticator(logger *slog.Logger, cfg config.Runtime) (provider.Authenticator, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		auth, err := google.NewAuthenticator(logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.TokenDir)
		if err != nil {
			return nil, fmt.Errorf("failed to set up google provider: %w", err)
		}
		return auth, nil
	case config.ProviderCalDAV:
		return dav.NewAuthenticator(logger, cfg.CalDAVEndpoint, cfg.CalDAVColor), nil
	case config.ProviderMemory:
		logger.Warn("Using the in-memory provider. Events are lost on restart.")
		return provider.MemoryAuthenticator{Provider: provider.NewMemory(
			models.RemoteCalendar{ID: "primary", Summary: "Calendar", BackgroundColor: dav.DefaultColor},
		)}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in to the backend and load events.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "code", Usage: "Authorization code, or username:password for CalDAV."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			code := strings.TrimSpace(c.String("code"))
			if code == "" {
				if code, err = promptCode(cfg); err != nil {
					return err
				}
			}

			a, err := newApp(logger, cfg)
			if err != nil {
				return err
			}
			if err := a.SignIn(c.Context, code); err != nil {
				return err
			}

			snap := a.Store().Snapshot()
			logger.Info("Successfully signed in.", "events", len(snap.Events), "calendars", len(snap.Resources))
			return nil
		},
	}
}

// promptCode asks for the authorization code on stdin. For Google it first
// prints the consent URL.
func promptCode(cfg config.Runtime) (string, error) {
	if cfg.Provider == config.ProviderGoogle {
		oauthConfig, err := google.GetOAuthConfigForAuthFlow(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return "", fmt.Errorf("failed to get google oauth config: %w", err)
		}
		authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		fmt.Printf("Go to the following link in your browser then type the "+
			"authorization code: \n%v\n", authURL)
	}

	fmt.Print("Enter Authorization Code: ")
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("no authorization code given")
	}
	return code, nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the saved session.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			a, err := newApp(logger, cfg)
			if err != nil {
				return err
			}
			return a.SignOut()
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Load events and print them as the widget sees them.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			a, err := newApp(logger, cfg)
			if err != nil {
				return err
			}
			if !a.Authenticated() {
				return fmt.Errorf("not signed in. Run the 'login' command first")
			}
			if err := a.Start(c.Context); err != nil {
				return err
			}
			return printSnapshot(c.App.Writer, a)
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Apply one widget notification read from a file or stdin.",
		ArgsUsage: "[notification.json]",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			var data []byte
			if path := c.Args().First(); path != "" && path != "-" {
				data, err = os.ReadFile(path)
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("failed to read notification: %w", err)
			}
			n, err := widget.Decode(data)
			if err != nil {
				return err
			}

			a, err := newApp(logger, cfg)
			if err != nil {
				return err
			}
			if err := a.Start(c.Context); err != nil {
				return err
			}
			if err := a.Notify(c.Context, n); err != nil {
				return err
			}
			return printSnapshot(c.App.Writer, a)
		},
	}
}

func uiCommand() *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the local API the calendar widget talks to.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Address to listen on. Overrides UNICAL_UI_LISTEN."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if c.IsSet("listen") {
				cfg.UIListen = c.String("listen")
			}

			a, err := newApp(logger, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The failure is already in the store for the widget to show.
			if err := a.Start(ctx); err != nil {
				logger.Error("Initial load failed", "error", err)
			}
			return web.NewServer(logger, a).ListenAndServe(ctx, cfg.UIListen)
		},
	}
}

func newApp(logger *slog.Logger, cfg config.Runtime) (*app.App, error) {
	sess, err := session.Open(cfg.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	client := remote.NewHTTPClient(logger, cfg.BackendURL, sess)
	return app.New(logger, sess, client), nil
}

func printSnapshot(w io.Writer, a *app.App) error {
	snap := a.Store().Snapshot()
	out := struct {
		Events    []widget.Record     `json:"events"`
		Resources []models.UIResource `json:"resources"`
	}{
		Events:    make([]widget.Record, 0, len(snap.Events)),
		Resources: snap.Resources,
	}
	for _, e := range snap.Events {
		out.Events = append(out.Events, widget.FromUIEvent(e))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
