package persist

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisBackend stores records as plain string values keyed by namespace, so
// several machines can share one profile.
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend wraps an existing client. The backend owns it from then on.
func NewRedisBackend(rdb *redis.Client) *RedisBackend { return &RedisBackend{rdb: rdb} }

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, pkgerrors.Wrapf(err, "ping redis at %s", addr)
	}
	return NewRedisBackend(rdb), nil
}

func (b *RedisBackend) Load(ctx context.Context, ns string) ([]byte, error) {
	v, err := b.rdb.Get(ctx, ns).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load persisted state")
	}
	return v, nil
}

func (b *RedisBackend) Save(ctx context.Context, ns string, record []byte) error {
	return pkgerrors.Wrap(b.rdb.Set(ctx, ns, record, 0).Err(), "save persisted state")
}

func (b *RedisBackend) Delete(ctx context.Context, ns string) error {
	return pkgerrors.Wrap(b.rdb.Del(ctx, ns).Err(), "delete persisted state")
}

func (b *RedisBackend) Close() error { return b.rdb.Close() }
