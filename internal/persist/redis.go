package persist

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend on Redis. Keys are stored under
// namespace followed by a colon separator. With a non-zero ttl every write
// refreshes the expiry of all keys in the namespace, so a session-tier
// backend ends as a whole after ttl of inactivity.
type RedisBackend struct {
	rdb       goredis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedisBackend creates a Backend backed by the given Redis client.
func NewRedisBackend(rdb goredis.UniversalClient, namespace string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (b *RedisBackend) fullKey(key string) string {
	if b.namespace == "" {
		return key
	}
	return b.namespace + ":" + key
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.rdb.Get(ctx, b.fullKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.rdb.Set(ctx, b.fullKey(key), value, b.ttl).Err(); err != nil {
		return err
	}
	if b.ttl > 0 {
		return b.touch(ctx)
	}
	return nil
}

// touch resets the expiry of every key in the namespace.
func (b *RedisBackend) touch(ctx context.Context) error {
	keys, err := b.scan(ctx, b.fullKey("")+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := b.rdb.Pipeline()
	for _, k := range keys {
		pipe.Expire(ctx, k, b.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.fullKey(key)).Err()
}

func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	raw, err := b.scan(ctx, b.fullKey(escapeGlob(prefix))+"*")
	if err != nil {
		return nil, err
	}
	strip := b.fullKey("")
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, strip))
	}
	sort.Strings(keys)
	return keys, nil
}

// scan returns the full Redis keys matching the glob pattern.
func (b *RedisBackend) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := b.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// escapeGlob escapes Redis MATCH metacharacters in a literal prefix.
func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
