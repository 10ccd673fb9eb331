package apiclient

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// errRefreshAborted is delivered to waiters when the refresh function panics.
var errRefreshAborted = errors.New("token refresh aborted")

type refreshResult struct {
	token *oauth2.Token
	err   error
}

// refreshCoordinator guarantees at most one refresh in flight. Callers arriving while
// a refresh runs are queued and receive the leader's outcome.
type refreshCoordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

// run executes fn unless a refresh is already in flight, in which case it waits for
// that refresh's result. fn runs with a context detached from the leader's
// cancellation and bounded by timeout, so one caller giving up doesn't fail everyone.
func (c *refreshCoordinator) run(
	ctx context.Context,
	timeout time.Duration,
	fn func(context.Context) (*oauth2.Token, error),
) (*oauth2.Token, error) {
	c.mu.Lock()
	if c.refreshing {
		wait := c.enqueue()
		c.mu.Unlock()
		return c.wait(ctx, wait)
	}
	c.beginRefresh()
	c.mu.Unlock()

	res := refreshResult{err: errRefreshAborted}
	defer func() { c.endRefresh(res) }()

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	res.token, res.err = fn(refreshCtx)
	return res.token, res.err
}

// inProgress reports whether a refresh is currently running.
func (c *refreshCoordinator) inProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// beginRefresh marks a refresh as running. Caller holds mu.
func (c *refreshCoordinator) beginRefresh() {
	c.refreshing = true
}

// endRefresh wakes all waiters with res and releases the refresh slot.
func (c *refreshCoordinator) endRefresh(res refreshResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flush(res)
	c.refreshing = false
}

// enqueue registers a waiter. Caller holds mu.
func (c *refreshCoordinator) enqueue() chan refreshResult {
	ch := make(chan refreshResult, 1)
	c.waiters = append(c.waiters, ch)
	return ch
}

// flush delivers res to every waiter in FIFO order. Caller holds mu.
func (c *refreshCoordinator) flush(res refreshResult) {
	for _, ch := range c.waiters {
		ch <- res
	}
	c.waiters = nil
}

func (c *refreshCoordinator) wait(ctx context.Context, ch chan refreshResult) (*oauth2.Token, error) {
	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		c.mu.Lock()
		c.waiters = slices.DeleteFunc(c.waiters, func(w chan refreshResult) bool { return w == ch })
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}
