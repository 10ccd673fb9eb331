package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/finctl/internal/app"
)

func proxyStartCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "serve the API locally using the stored session, or sign in first with --no-persist",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
		}, credentialFlags()...),
		Action: proxyStartAction,
	}
}

func proxyStartAction(ctx context.Context, cmd *cli.Command) error {
	cfg, application, cleanup, err := setupSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	// A memory session starts empty, so sign in before accepting requests.
	if cfg.Auth.Storage == app.CredentialStorageMemory {
		if err := signIn(ctx, cmd, application.Auth, os.Stdin); err != nil {
			return err
		}
		slog.InfoContext(ctx, "signed in for this proxy session")
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Serve(ctx); err != nil {
		return fmt.Errorf("proxy failed: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
