package credstore

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// EnvStore provides read-only access to credentials held in environment variables.
// Refreshed credentials cannot be persisted; wrap it with Cached to keep them for the process lifetime.
type EnvStore struct {
	accessKey  string
	refreshKey string
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore reading the access token from accessKey and,
// optionally, the refresh token from refreshKey.
func NewEnvStore(accessKey, refreshKey string) (*EnvStore, error) {
	if accessKey == "" {
		return nil, fmt.Errorf("access token environment key cannot be empty")
	}

	return &EnvStore{
		accessKey:  accessKey,
		refreshKey: refreshKey,
	}, nil
}

// Load returns the credentials from the environment. Returns ErrNotFound if the
// access token variable is unset or empty.
func (e *EnvStore) Load(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	access := os.Getenv(e.accessKey)
	if access == "" {
		return nil, ErrNotFound
	}

	token := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
	}
	if e.refreshKey != "" {
		token.RefreshToken = os.Getenv(e.refreshKey)
	}
	return token, nil
}

// Save is not supported for environment variables.
func (e *EnvStore) Save(ctx context.Context, _ *oauth2.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ErrReadOnly
}

// Clear is not supported for environment variables.
func (e *EnvStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ErrReadOnly
}
