package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/florianilch/finctl/internal/apierror"
)

// strippedHeaders are client headers never forwarded upstream. Authentication is the
// ambassador's job; forwarding client credentials would bypass the shared session.
var strippedHeaders = []string{
	"Authorization",
	"Cookie",
	"Proxy-Authorization",
}

// Proxy is a local ambassador forwarding API calls to the finance backend with the
// shared session's credentials.
type Proxy struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// authPath is the backend's credential endpoint subtree, relative to the base URL.
const authPath = "auth/"

type options struct {
	authTransport http.RoundTripper
}

// Option configures a Proxy.
type Option func(*options)

// WithAuthTransport sets the transport for requests under the backend's auth/ paths.
// Those carry the caller's own credentials, so a 401 there is an answer to relay
// rather than a reason to refresh the shared session. Defaults to http.DefaultTransport.
func WithAuthTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.authTransport = rt
	}
}

// New creates a proxy forwarding requests under the base URL's path to the backend
// through transport, typically an *apiclient.Transport.
func New(baseURL string, transport http.RoundTripper, opts ...Option) (*Proxy, error) {
	upstream, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host required", baseURL)
	}
	if transport == nil {
		return nil, fmt.Errorf("missing transport")
	}

	o := options{authTransport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}
	if o.authTransport == nil {
		return nil, fmt.Errorf("missing auth transport")
	}

	logger := slog.Default()

	mux := http.NewServeMux()

	prefix := "/" + strings.Trim(upstream.Path, "/")
	if prefix != "/" {
		prefix += "/"
	}
	mux.Handle(prefix, applyMiddlewares(newReverseProxy(upstream, transport),
		Logging(logger),
		Recovery,
	))
	mux.Handle(prefix+authPath, applyMiddlewares(newReverseProxy(upstream, o.authTransport),
		Logging(logger),
		Recovery,
	))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	return &Proxy{mux: mux}, nil
}

func newReverseProxy(upstream *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.Host = upstream.Host
			for _, h := range strippedHeaders {
				pr.Out.Header.Del(h)
			}
		},
		// Flush only when the backend flushes, so streamed exports arrive immediately
		FlushInterval: -1,
		Transport:     transport,
		ErrorHandler:  writeUpstreamError,
	}
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Report exports can be slow, still bounded
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// writeUpstreamError maps transport failures to JSON error responses.
// An expired session becomes 401 so local consumers know to log in again.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	status := http.StatusBadGateway
	message := apierror.MessageNetwork

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		message = apiErr.Message
		if apiErr.Kind == apierror.KindSessionExpired {
			status = http.StatusUnauthorized
		}
	}
	if errors.Is(err, context.Canceled) {
		slog.DebugContext(ctx, "client went away during upstream request")
		return
	}

	slog.ErrorContext(ctx, "upstream request failed", "error", err)
	writeJSONError(ctx, w, message, status)
}
