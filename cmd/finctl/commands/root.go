package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/finctl/internal/apierror"
	"github.com/florianilch/finctl/internal/app"
	"github.com/florianilch/finctl/internal/observability"
)

// environ is swapped in tests.
var environ = os.Environ

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand().Run(ctx, args)
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "finctl",
		Usage: "command-line client for the finance API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before reading FINCTL_* variables",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "finance API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.BoolFlag{
				Name:  "no-persist",
				Usage: "keep credentials in memory only (proxy start signs in first)",
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "credential storage (file|keyring|env|redis|memory)",
				Value: string(app.DefaultConfigAuthStorage),
			},
		},
		Before: loadEnvFile,
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			getCommand(),
			reportCommand(),
			{
				Name:     "proxy",
				Usage:    "local ambassador sharing one session between tools",
				Commands: []*cli.Command{proxyStartCommand()},
			},
			{
				Name:     "config",
				Usage:    "inspect configuration",
				Commands: []*cli.Command{configShowCommand()},
			},
		},
	}
}

// loadEnvFile loads the dotenv file into the process environment. Variables already
// set take precedence; a missing default file is not an error.
func loadEnvFile(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("env-file")
	if path == "" {
		return ctx, nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.IsSet("env-file") {
			return ctx, nil
		}
		return ctx, fmt.Errorf("loading env file: %w", err)
	}
	return ctx, nil
}

// errEphemeralStorage rejects memory storage for commands that end with the process.
var errEphemeralStorage = errors.New("memory credential storage only lives as long as `finctl proxy start`; " +
	"use a persistent storage backend for other commands")

// setup loads configuration, installs logging and builds the application.
// The returned cleanup function flushes telemetry and releases the credential store.
func setup(ctx context.Context, cmd *cli.Command) (*app.Config, *app.App, func(), error) {
	return setupSession(ctx, cmd, false)
}

// setupSession is setup for commands that may keep the session in memory because
// they sign in themselves and outlive a single request.
func setupSession(ctx context.Context, cmd *cli.Command, allowMemory bool) (*app.Config, *app.App, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, environ)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Bool("no-persist") {
		cfg.Auth.Storage = app.CredentialStorageMemory
	}
	if err := checkStorage(cfg.Auth.Storage, allowMemory); err != nil {
		return nil, nil, nil, err
	}

	shutdownTelemetry, err := observability.Instrument(ctx, observability.Options{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Exporter: string(cfg.Telemetry.Exporter),
		Endpoint: cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg, app.WithNotifier(&loginPrompt{w: cmd.Root().ErrWriter, command: cmd.Name}))
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	cleanup := func() {
		if err := application.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close credential store", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Shutdown.Timeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.WarnContext(ctx, "failed to flush telemetry", "error", err)
		}
	}
	return cfg, application, cleanup, nil
}

// checkStorage rejects memory storage unless the command can use it. A memory store
// starts empty and is gone when the command exits, so nothing else can see a login.
func checkStorage(storage app.CredentialStorageType, allowMemory bool) error {
	if storage == app.CredentialStorageMemory && !allowMemory {
		return errEphemeralStorage
	}
	return nil
}

// writer returns where command output goes.
func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// Describe renders an error for the terminal, expanding validation details.
func Describe(err error) string {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	if len(apiErr.Issues) == 0 {
		return apiErr.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (status %d)", apiErr.Message, apiErr.Status)
	for _, issue := range apiErr.Issues {
		if path := issue.Path(); path != "" {
			fmt.Fprintf(&b, "\n  %s: %s", path, issue.Msg)
			continue
		}
		fmt.Fprintf(&b, "\n  %s", issue.Msg)
	}
	return b.String()
}
