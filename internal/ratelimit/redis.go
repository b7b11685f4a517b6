package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments the window counter and starts its TTL on the first hit.
// Returns {count, pttl_ms}.
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares counters across instances. INCR and PEXPIRE run in one Lua
// script so the window start and the count are set atomically.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, win time.Duration, now time.Time) (Decision, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis hit %q: %w", key, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis hit %q: unexpected reply %v", key, res)
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	d := Decision{Limit: limit, ResetAt: now.Add(ttl)}
	if count > limit {
		return d, nil
	}
	d.Allowed = true
	d.Remaining = limit - count
	return d, nil
}
