package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/finctl/internal/apiclient"
	"github.com/florianilch/finctl/internal/auth"
	"github.com/florianilch/finctl/internal/credstore"
	"github.com/florianilch/finctl/internal/finance"
	"github.com/florianilch/finctl/internal/proxy"
)

// Option configures an App.
type Option func(*options)

type options struct {
	notifier apiclient.SessionExpiredNotifier
}

// WithNotifier sets the collaborator told about expired sessions.
func WithNotifier(n apiclient.SessionExpiredNotifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// App wires credential storage, authentication and the API client together and
// orchestrates the lifecycle of the ambassador proxy.
type App struct {
	cfg *Config

	closeStore func() error

	Auth      *auth.Service
	Transport *apiclient.Transport
	Client    *apiclient.Client
	Finance   *finance.Services
}

// New creates a new App instance. No I/O is performed until the first request.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	backend, closeStore, err := cfg.Auth.NewCredentialStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}
	store, err := credstore.NewCached(backend)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	authService, err := auth.New(cfg.API.BaseURL, store, auth.WithTimeout(cfg.Auth.RefreshTimeout))
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	transportOpts := []apiclient.TransportOption{
		apiclient.WithRefreshTimeout(cfg.Auth.RefreshTimeout),
	}
	if o.notifier != nil {
		transportOpts = append(transportOpts, apiclient.WithNotifier(o.notifier))
	}
	transport, err := apiclient.NewTransport(store, authService, transportOpts...)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	client, err := apiclient.New(cfg.API.BaseURL, transport, apiclient.WithTimeout(cfg.API.Timeout))
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	return &App{
		cfg:        cfg,
		closeStore: closeStore,
		Auth:       authService,
		Transport:  transport,
		Client:     client,
		Finance:    finance.NewServices(client),
	}, nil
}

// Close releases the credential storage backend.
func (a *App) Close() error {
	return a.closeStore()
}

// Serve runs the ambassador proxy and blocks until ctx is cancelled or the server fails.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Serve(ctx context.Context) error {
	proxyServer, err := proxy.New(a.cfg.API.BaseURL, a.Transport)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting proxy server", "address", address, "upstream", a.cfg.API.BaseURL)
	proxyErrCh, err := proxyServer.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, proxyServer.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
