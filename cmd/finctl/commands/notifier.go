package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/florianilch/finctl/internal/apiclient"
)

// loginPrompt tells the user to sign in again once the session has expired.
// Nothing is printed while the login command itself is running.
type loginPrompt struct {
	w       io.Writer
	command string
}

var _ apiclient.SessionExpiredNotifier = (*loginPrompt)(nil)

func (p *loginPrompt) SessionExpired(ctx context.Context, err error) {
	slog.WarnContext(ctx, "session expired, credentials cleared", "error", err)
	if p.command == "login" {
		return
	}
	w := p.w
	if w == nil {
		w = os.Stderr
	}
	_, _ = fmt.Fprintln(w, "Session expired. Run `finctl login` to sign in again.")
}
