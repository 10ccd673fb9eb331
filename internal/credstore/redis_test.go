package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)

	store, err := NewRedisStore(rdb, "finctl:credentials", 0)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, &oauth2.Token{
		AccessToken:  "a1",
		RefreshToken: "r1",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}))

	assert.Equal(t, "a1", mr.HGet("finctl:credentials", fieldAccessToken))
	assert.Equal(t, "2026-03-01T12:00:00Z", mr.HGet("finctl:credentials", fieldExpiry))
	assert.Zero(t, mr.TTL("finctl:credentials"))

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, expiry.Equal(token.Expiry))

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists("finctl:credentials"))
}

func TestRedisStoreSaveReplacesPreviousPair(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)

	store, err := NewRedisStore(rdb, "creds", 0)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, &oauth2.Token{AccessToken: "a2"}))

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", token.AccessToken)
	assert.Empty(t, token.RefreshToken)
	assert.True(t, token.Expiry.IsZero())
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)

	store, err := NewRedisStore(rdb, "creds", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}))

	assert.Equal(t, time.Hour, mr.TTL("creds"))

	mr.FastForward(time.Hour + time.Second)
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreSharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)

	first, err := NewRedisStore(rdb, "creds", 0)
	require.NoError(t, err)
	second, err := NewRedisStore(rdb, "creds", 0)
	require.NoError(t, err)

	require.NoError(t, first.Save(ctx, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}))

	token, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", token.AccessToken)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = rdb.Close() }()

	store, err := NewRedisStore(rdb, "creds", 0)
	require.NoError(t, err)

	mr.Close()

	_, err = store.Load(context.Background())
	assert.ErrorContains(t, err, "reading credentials from redis")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewRedisStoreValidation(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := NewRedisStore(nil, "creds", 0)
	assert.Error(t, err)
	_, err = NewRedisStore(rdb, "", 0)
	assert.Error(t, err)
	_, err = NewRedisStore(rdb, "creds", -time.Second)
	assert.Error(t, err)
}
