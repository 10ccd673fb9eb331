package apiclient

import (
	"context"
	"log/slog"
)

// SessionExpiredNotifier is told when the refresh token was rejected and stored
// credentials have been cleared. Interactive frontends use it to send the user back
// to the login entry point.
type SessionExpiredNotifier interface {
	SessionExpired(ctx context.Context, err error)
}

// NotifierFunc adapts a function to SessionExpiredNotifier.
type NotifierFunc func(ctx context.Context, err error)

// SessionExpired calls f(ctx, err).
func (f NotifierFunc) SessionExpired(ctx context.Context, err error) {
	f(ctx, err)
}

// logNotifier is the default notifier.
type logNotifier struct{}

func (logNotifier) SessionExpired(ctx context.Context, err error) {
	slog.WarnContext(ctx, "session expired, credentials cleared", "error", err)
}
