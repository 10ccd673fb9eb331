package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/finctl/internal/apiclient"
	"github.com/florianilch/finctl/internal/apierror"
	"github.com/florianilch/finctl/internal/credstore"
)

// DefaultTimeout bounds each call to an authentication endpoint.
const DefaultTimeout = 30 * time.Second

// Option configures a Service.
type Option func(*serviceConfig)

type serviceConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
}

// WithTransport sets the base transport for authentication requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *serviceConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds each authentication request.
func WithTimeout(d time.Duration) Option {
	return func(c *serviceConfig) {
		c.timeout = d
	}
}

// Status describes the locally stored session.
type Status struct {
	LoggedIn        bool
	HasRefreshToken bool
	Subject         string
	// ExpiresAt is zero when the access token carries no readable exp claim.
	ExpiresAt time.Time
}

// Expired reports whether the access token's exp claim lies in the past at now.
func (s Status) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Service performs login, refresh and logout against the backend.
type Service struct {
	store credstore.Store

	loginConfig   *oauth2.Config
	refreshConfig *oauth2.Config

	loginClient   *http.Client
	refreshClient *http.Client
}

// Compile-time check that Service can refresh tokens for apiclient.Transport.
var _ apiclient.Refresher = (*Service)(nil)

// New creates a Service for the API at baseURL persisting credentials to store.
func New(baseURL string, store credstore.Store, opts ...Option) (*Service, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}

	cfg := &serviceConfig{
		baseTransport: http.DefaultTransport,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Service{
		store: store,
		loginConfig: &oauth2.Config{
			Endpoint: Endpoint(base),
		},
		refreshConfig: &oauth2.Config{
			Endpoint: RefreshEndpoint(base),
		},
		loginClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: cfg.baseTransport,
		},
		refreshClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: &jsonBodyTransport{base: cfg.baseTransport},
		},
	}, nil
}

// Login exchanges username and password for a credential pair and stores it.
func (s *Service) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	// oauth2 picks up custom HTTP clients from the context
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.loginClient)
	token, err := s.loginConfig.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, normalize(err)
	}
	token = withExpiry(token)

	if err := s.store.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("storing credentials: %w", err)
	}

	slog.InfoContext(ctx, "logged in", "refreshable", token.RefreshToken != "")
	return token, nil
}

// Refresh exchanges refreshToken for a new credential pair. The result is not
// persisted; apiclient.Transport does that while holding the refresh slot.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, apiclient.ErrNoRefreshToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.refreshClient)
	// Without an access token the source goes straight to the refresh endpoint
	source := s.refreshConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, normalize(err)
	}
	return withExpiry(token), nil
}

// Logout clears stored credentials. The backend keeps no server-side session to revoke.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	slog.InfoContext(ctx, "logged out")
	return nil
}

// Status reports the locally stored session without contacting the backend.
func (s *Service) Status(ctx context.Context) (Status, error) {
	token, err := s.store.Load(ctx)
	if errors.Is(err, credstore.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("loading credentials: %w", err)
	}

	status := Status{
		LoggedIn:        token.AccessToken != "",
		HasRefreshToken: token.RefreshToken != "",
		ExpiresAt:       token.Expiry,
	}
	if claims, err := InspectAccessToken(token.AccessToken); err == nil {
		status.Subject = claims.Subject
		if !claims.ExpiresAt.IsZero() {
			status.ExpiresAt = claims.ExpiresAt
		}
	}
	return status, nil
}

// normalize maps oauth2 errors onto the API error taxonomy.
func normalize(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		apiErr := apierror.FromResponse(retrieveErr.Response.StatusCode, retrieveErr.Body)
		apiErr.Err = err
		return apiErr
	}
	return apierror.Network(err)
}
