package redis

import (
	"context"

	goredis "github.com/go-redis/redis/v8"
	"github.com/murmurchat/realtime/internal/instance"
	"go.uber.org/zap"
)

type SetupOptions struct {
	Username   string
	Password   string
	Database   int
	Sentinel   bool
	MasterName string
	Addresses  []string
}

func Setup(ctx context.Context, opt SetupOptions) (instance.Redis, error) {
	var client goredis.UniversalClient

	if opt.Sentinel {
		client = goredis.NewFailoverClient(&goredis.FailoverOptions{
			MasterName:    opt.MasterName,
			SentinelAddrs: opt.Addresses,
			Username:      opt.Username,
			Password:      opt.Password,
			DB:            opt.Database,
		})
	} else {
		client = goredis.NewClient(&goredis.Options{
			Addr:     opt.Addresses[0],
			Username: opt.Username,
			Password: opt.Password,
			DB:       opt.Database,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &inst{client: client}, nil
}

type inst struct {
	client goredis.UniversalClient
}

func (i *inst) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

func (i *inst) ComposeKey(svc string, args ...string) instance.RedisKey {
	return instance.ComposeKey(svc, args...)
}

func (i *inst) RawClient() goredis.UniversalClient {
	return i.client
}

// Subscribe pipes messages from the given channels into ch until the
// context is done. Payloads are forwarded as-is.
func (i *inst) Subscribe(ctx context.Context, ch chan<- string, channels ...instance.RedisKey) {
	keys := make([]string, len(channels))
	for n, k := range channels {
		keys[n] = k.String()
	}

	sub := i.client.Subscribe(ctx, keys...)

	defer func() {
		if err := sub.Close(); err != nil {
			zap.S().Warnw("failed to close redis subscription",
				"error", err,
			)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Channel():
			if msg == nil {
				return
			}

			ch <- msg.Payload
		}
	}
}
