package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Wrapper adapts a redis client to the health pinger interface.
type Wrapper struct {
	rdb *redis.Client
}

// NewWrapper returns a Wrapper around an open redis client
func NewWrapper(rdb *redis.Client) Wrapper {
	return Wrapper{rdb: rdb}
}

// Ping returns nil when redis answers.
func (w Wrapper) Ping(ctx context.Context) error {
	return Status(ctx, w.rdb)
}

// Open opens a connection to redis and returns it
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := Status(ctx, rdb); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Status returns nil if redis status is ok. Otherwise a redis status err
func Status(ctx context.Context, rdb *redis.Client) error {
	if pingCmd := rdb.Ping(ctx); pingCmd.Err() != nil {
		return pingCmd.Err()
	}
	return nil
}
