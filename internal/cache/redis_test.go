package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altf4-games/credshield-node/internal/redis"
)

func testCache(t *testing.T) Cache {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := redis.Open(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	return NewRedisCache(client)
}

func TestRedisCacheRoundtrip(t *testing.T) {
	ctx := context.Background()
	c := testCache(t)

	type payload struct {
		Name  string
		Score float64
	}

	require.NoError(t, c.Set(ctx, "key", payload{Name: "Ada", Score: 8.5}, time.Minute))
	assert.True(t, c.Exists(ctx, "key"))

	var got payload
	require.True(t, c.Get(ctx, "key", &got))
	assert.Equal(t, payload{Name: "Ada", Score: 8.5}, got)
}

func TestRedisCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := testCache(t)

	var got string
	assert.False(t, c.Get(ctx, "missing", &got))
	assert.False(t, c.Exists(ctx, "missing"))
}

func TestRedisCacheDelete(t *testing.T) {
	ctx := context.Background()
	c := testCache(t)

	require.NoError(t, c.Set(ctx, "key", "value", ForEver))
	require.NoError(t, c.Delete(ctx, "key"))
	assert.False(t, c.Exists(ctx, "key"))
}
