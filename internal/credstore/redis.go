package credstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Hash fields of a stored credential pair.
const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldTokenType    = "token_type"
	fieldExpiry       = "expiry"
)

// RedisStore keeps the credential pair in a Redis hash so several local processes
// share one session. An optional TTL bounds how long an abandoned session survives.
type RedisStore struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// Compile-time check to ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore writing to the hash at key.
// A zero ttl keeps credentials until they are cleared.
func NewRedisStore(rdb redis.Cmdable, key string, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("missing redis client")
	}
	if key == "" {
		return nil, fmt.Errorf("redis key cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("redis ttl cannot be negative")
	}

	return &RedisStore{
		rdb: rdb,
		key: key,
		ttl: ttl,
	}, nil
}

// Load returns the credentials stored in the hash or ErrNotFound.
func (r *RedisStore) Load(ctx context.Context) (*oauth2.Token, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading credentials from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	token := &oauth2.Token{
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
		TokenType:    fields[fieldTokenType],
	}
	if raw := fields[fieldExpiry]; raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing stored expiry: %w", err)
		}
		token.Expiry = expiry
	}
	if validate(token) != nil {
		return nil, ErrNotFound
	}
	return token, nil
}

// Save replaces the stored hash atomically and refreshes its TTL.
func (r *RedisStore) Save(ctx context.Context, token *oauth2.Token) error {
	if err := validate(token); err != nil {
		return err
	}

	values := map[string]any{
		fieldAccessToken:  token.AccessToken,
		fieldRefreshToken: token.RefreshToken,
		fieldTokenType:    token.TokenType,
		fieldExpiry:       "",
	}
	if !token.Expiry.IsZero() {
		values[fieldExpiry] = token.Expiry.UTC().Format(time.RFC3339)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key, values)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing credentials to redis: %w", err)
	}
	return nil
}

// Clear deletes the hash.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("deleting credentials from redis: %w", err)
	}
	return nil
}
