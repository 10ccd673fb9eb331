package credstore

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var (
	// ErrNotFound is returned by Load when no credentials are stored.
	ErrNotFound = errors.New("no stored credentials")

	// ErrReadOnly is returned by Save and Clear on read-only backends.
	ErrReadOnly = errors.New("credential storage is read-only")
)

// Store reads and writes the credential pair to persistent storage.
type Store interface {
	// Load returns the stored credentials or ErrNotFound.
	Load(ctx context.Context) (*oauth2.Token, error)

	// Save persists the credentials, replacing any previous pair.
	Save(ctx context.Context, token *oauth2.Token) error

	// Clear removes stored credentials. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// validate rejects tokens that cannot authenticate anything.
func validate(token *oauth2.Token) error {
	if token == nil {
		return errors.New("token cannot be nil")
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return errors.New("token has neither access nor refresh token")
	}
	return nil
}

// Reloader is implemented by stores that keep a local copy of the credentials.
// Reload bypasses that copy and reads the backing storage, so changes made by
// other processes sharing it become visible.
type Reloader interface {
	Reload(ctx context.Context) (*oauth2.Token, error)
}
