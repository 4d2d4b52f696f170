package redislock

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("redislock",
	fx.Provide(func(client *redis.Client) Lock {
		return NewLocker(client)
	}),
)
