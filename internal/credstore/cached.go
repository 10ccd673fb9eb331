package credstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
)

// Cached wraps a Store with an in-memory copy of the last loaded or saved credentials.
// Reads after the first successful Load are lock-free and perform no I/O.
type Cached struct {
	store Store

	current atomic.Pointer[oauth2.Token]
	writeMu sync.Mutex
	// unsaved is set while the cached pair is newer than what the backend holds,
	// e.g. a refresh on a read-only store. Guarded by writeMu.
	unsaved bool
}

// Compile-time checks to ensure Cached implements Store and Reloader
var (
	_ Store    = (*Cached)(nil)
	_ Reloader = (*Cached)(nil)
)

// NewCached wraps store. No I/O is performed until the first Load.
func NewCached(store Store) (*Cached, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	return &Cached{store: store}, nil
}

// Load returns the cached credentials, reading the backing store on a cache miss.
// Missing credentials are not cached so a login from another process is picked up.
func (c *Cached) Load(ctx context.Context) (*oauth2.Token, error) {
	// Hot path: lock-free atomic read
	if t := c.current.Load(); t != nil {
		return cloneToken(t), nil
	}

	// Slow path: serialized with writers so a concurrent Clear can't be undone
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if t := c.current.Load(); t != nil {
		return cloneToken(t), nil
	}
	token, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(cloneToken(token))
	return cloneToken(token), nil
}

// Reload reads the backing store and replaces the cache with the result. A missing
// pair empties the cache; other errors leave it untouched. A pair the backend failed
// to persist is returned as is, since the backend only holds an older one.
func (c *Cached) Reload(ctx context.Context) (*oauth2.Token, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if t := c.current.Load(); t != nil && c.unsaved {
		return cloneToken(t), nil
	}

	token, err := c.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		c.current.Store(nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	c.current.Store(cloneToken(token))
	return cloneToken(token), nil
}

// Save updates the cache and persists to the backing store. The cache is updated even
// when persistence fails: the new access token stays usable for this process.
func (c *Cached) Save(ctx context.Context, token *oauth2.Token) error {
	if err := validate(token); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.current.Store(cloneToken(token))
	if err := c.store.Save(ctx, token); err != nil {
		c.unsaved = true
		return fmt.Errorf("persisting credentials: %w", err)
	}
	c.unsaved = false
	return nil
}

// Clear drops the cache and clears the backing store.
func (c *Cached) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.current.Store(nil)
	c.unsaved = false
	return c.store.Clear(ctx)
}
