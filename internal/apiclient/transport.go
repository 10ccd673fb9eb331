package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/oauth2"

	"github.com/florianilch/finctl/internal/apierror"
	"github.com/florianilch/finctl/internal/credstore"
)

// HeaderRequestID carries a per-request correlation ID. Replays reuse the original ID.
const HeaderRequestID = "X-Request-Id"

// DefaultRefreshTimeout bounds a single refresh call, including persistence.
const DefaultRefreshTimeout = 30 * time.Second

// ErrNoRefreshToken is the cause of a session expiry when nothing can be refreshed.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// maxDrainBytes caps how much of a discarded 401 body is read to reuse the connection.
const maxDrainBytes = 64 << 10

// Refresher exchanges a refresh token for a new credential pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBase sets the underlying RoundTripper. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// WithNotifier sets the collaborator informed when the session ends.
func WithNotifier(n SessionExpiredNotifier) TransportOption {
	return func(t *Transport) {
		t.notifier = n
	}
}

// WithRefreshTimeout bounds each refresh attempt.
func WithRefreshTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.refreshTimeout = d
	}
}

// Transport is an http.RoundTripper that authenticates requests with the stored
// access token and recovers from an expired token by refreshing it exactly once.
//
// A 401 triggers a single coordinated refresh no matter how many requests observe it
// concurrently; every request is replayed at most once, so a 401 on the replay is
// returned to the caller as is. If the refresh fails, stored credentials are cleared,
// the SessionExpiredNotifier is called once, and every waiting request fails with the
// same *apierror.Error of kind KindSessionExpired.
type Transport struct {
	base           http.RoundTripper
	store          credstore.Store
	refresher      Refresher
	notifier       SessionExpiredNotifier
	refreshTimeout time.Duration

	coordinator refreshCoordinator
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// NewTransport creates a Transport reading credentials from store and refreshing them
// through refresher.
func NewTransport(store credstore.Store, refresher Refresher, opts ...TransportOption) (*Transport, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}

	t := &Transport{
		base:           http.DefaultTransport,
		store:          store,
		refresher:      refresher,
		notifier:       logNotifier{},
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.refreshTimeout <= 0 {
		return nil, fmt.Errorf("refresh timeout must be positive")
	}
	return t, nil
}

// Refreshing reports whether a token refresh is currently in flight.
func (t *Transport) Refreshing() bool {
	return t.coordinator.inProgress()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, apierror.Network(fmt.Errorf("buffering request body: %w", err))
	}

	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	token, err := t.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.send(req, getBody, requestID, token)
	if err != nil {
		return nil, apierror.Network(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	discard(resp)

	slog.DebugContext(ctx, "access token rejected, refreshing", "request_id", requestID)

	fresh, err := t.coordinator.run(ctx, t.refreshTimeout, func(refreshCtx context.Context) (*oauth2.Token, error) {
		return t.refresh(refreshCtx, token)
	})
	if err != nil {
		return nil, err
	}

	// Replay exactly once: a second 401 is terminal and goes back to the caller.
	resp, err = t.send(req, getBody, requestID, fresh)
	if err != nil {
		return nil, apierror.Network(err)
	}
	return resp, nil
}

// refresh obtains a new credential pair. Runs only while holding the refresh slot.
// used is the token the failed request was sent with.
func (t *Transport) refresh(ctx context.Context, used *oauth2.Token) (*oauth2.Token, error) {
	// Another process sharing the store may have rotated the pair; a cached copy would hide that.
	current, err := t.storedToken(ctx)
	if err != nil {
		return nil, err
	}

	// A refresh that finished after this request was sent already replaced the token.
	if current != nil && current.AccessToken != "" && (used == nil || current.AccessToken != used.AccessToken) {
		return current, nil
	}

	// Nothing stored: either the session already ended or there never was one.
	// Either way there is nothing to clear and nobody new to tell.
	if current == nil {
		return nil, apierror.SessionExpired(ErrNoRefreshToken)
	}
	if current.RefreshToken == "" {
		return nil, t.endSession(ctx, ErrNoRefreshToken)
	}

	fresh, err := t.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, t.endSession(ctx, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}

	if err := t.store.Save(ctx, fresh); err != nil {
		// The new access token is still usable for this process
		slog.ErrorContext(ctx, "failed to persist refreshed credentials", "error", err)
	}

	slog.InfoContext(ctx, "access token refreshed")
	return fresh, nil
}

// endSession clears credentials and notifies about the expired session.
func (t *Transport) endSession(ctx context.Context, cause error) error {
	expired := apierror.SessionExpired(cause)

	if err := t.store.Clear(ctx); err != nil && !errors.Is(err, credstore.ErrReadOnly) {
		slog.ErrorContext(ctx, "failed to clear credentials", "error", err)
	}
	t.notifier.SessionExpired(ctx, expired)

	return expired
}

// currentToken returns the stored credentials, or nil when none are stored.
func (t *Transport) currentToken(ctx context.Context) (*oauth2.Token, error) {
	return loadToken(ctx, t.store.Load)
}

// storedToken is currentToken read from the backing storage, bypassing any cache.
func (t *Transport) storedToken(ctx context.Context) (*oauth2.Token, error) {
	if r, ok := t.store.(credstore.Reloader); ok {
		return loadToken(ctx, r.Reload)
	}
	return t.currentToken(ctx)
}

func loadToken(ctx context.Context, load func(context.Context) (*oauth2.Token, error)) (*oauth2.Token, error) {
	token, err := load(ctx)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.CredentialStore(err)
	}
	return token, nil
}

// send issues a fresh clone of req authenticated with token.
func (t *Transport) send(
	req *http.Request,
	getBody func() (io.ReadCloser, error),
	requestID string,
	token *oauth2.Token,
) (*http.Response, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
		out.GetBody = getBody
	}

	out.Header.Del("Authorization")
	if token != nil && token.AccessToken != "" {
		token.SetAuthHeader(out)
	}
	out.Header.Set(HeaderRequestID, requestID)
	otel.GetTextMapPropagator().Inject(out.Context(), propagation.HeaderCarrier(out.Header))

	return t.base.RoundTrip(out)
}

// replayableBody returns a function producing fresh copies of the request body.
// The original body is consumed and closed, as the RoundTripper contract requires.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}

	defer func() { _ = req.Body.Close() }()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// discard drains and closes a response that won't be returned.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
