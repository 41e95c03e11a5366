package instance

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type RedisKey string

func (k RedisKey) String() string {
	return string(k)
}

type Redis interface {
	Ping(ctx context.Context) error
	ComposeKey(svc string, args ...string) RedisKey
	RawClient() redis.UniversalClient
	Subscribe(ctx context.Context, ch chan<- string, channels ...RedisKey)
}

func ComposeKey(svc string, args ...string) RedisKey {
	k := RedisKey(svc)

	for _, arg := range args {
		k = RedisKey(fmt.Sprintf("%s:%s", k, arg))
	}

	return k
}
