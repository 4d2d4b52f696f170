package buffer

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const hashKey = "engagement:buffer"

// Buffer holds engagement events between flushes.
type Buffer interface {
	Add(ctx context.Context, field string) error
	Scan(ctx context.Context, max int) ([]string, error)
	Remove(ctx context.Context, fields ...string) error
	Len(ctx context.Context) (int64, error)
}

type redisBuffer struct {
	client *redis.Client
}

func NewRedisBuffer(client *redis.Client) Buffer {
	return &redisBuffer{client: client}
}

func (b *redisBuffer) Add(ctx context.Context, field string) error {
	value := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	return b.client.HSet(ctx, hashKey, field, value).Err()
}

func (b *redisBuffer) Scan(ctx context.Context, max int) ([]string, error) {
	if max <= 0 {
		max = 100
	}

	fields := make([]string, 0, max)
	var cursor uint64
	for {
		batch, next, err := b.client.HScan(ctx, hashKey, cursor, "*", int64(max)).Result()
		if err != nil {
			return nil, err
		}
		// HSCAN returns alternating field/value pairs.
		for i := 0; i+1 < len(batch); i += 2 {
			fields = append(fields, batch[i])
			if len(fields) >= max {
				return fields, nil
			}
		}
		cursor = next
		if cursor == 0 {
			return fields, nil
		}
	}
}

func (b *redisBuffer) Remove(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return b.client.HDel(ctx, hashKey, fields...).Err()
}

func (b *redisBuffer) Len(ctx context.Context) (int64, error) {
	return b.client.HLen(ctx, hashKey).Result()
}
