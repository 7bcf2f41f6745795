package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// hitScript trims, counts every window and records the hit when allowed.
// ARGV: now_ms, member, retain_ms, then window_ms/max pairs.
// Returns allowed followed by count/oldest_ms pairs.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local retain = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - retain)
local n = (#ARGV - 3) / 2
local res = {}
local allowed = 1
for i = 1, n do
  local w = tonumber(ARGV[2 + i * 2])
  local m = tonumber(ARGV[3 + i * 2])
  local lo = '(' .. (now - w)
  local c = redis.call('ZCOUNT', KEYS[1], lo, '+inf')
  local first = redis.call('ZRANGEBYSCORE', KEYS[1], lo, '+inf', 'WITHSCORES', 'LIMIT', 0, 1)
  local o = -1
  if #first > 0 then o = tonumber(first[2]) end
  res[#res + 1] = c
  res[#res + 1] = o
  if m > 0 and c >= m then allowed = 0 end
end
if allowed == 1 then
  redis.call('ZADD', KEYS[1], now, ARGV[2])
  redis.call('PEXPIRE', KEYS[1], retain)
end
table.insert(res, 1, allowed)
return res
`)

// RedisStore keeps series in sorted sets scored by unix milliseconds.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store. An empty prefix defaults to "notify:rl:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "notify:rl:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, limits []Limit) (HitResult, error) {
	if key == "" {
		return HitResult{}, ErrKeyRequired
	}

	nowMs := now.UnixMilli()
	args := make([]any, 0, 3+2*len(limits))
	args = append(args, nowMs, strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(), maxWindow(limits).Milliseconds())
	for _, l := range limits {
		args = append(args, l.Window.Milliseconds(), l.Max)
	}

	raw, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, args...).Int64Slice()
	if err != nil {
		return HitResult{}, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	if len(raw) != 1+2*len(limits) {
		return HitResult{}, ErrUnexpectedRes
	}

	res := HitResult{
		Recorded: raw[0] == 1,
		Counts:   make([]int64, len(limits)),
		Oldest:   make([]time.Time, len(limits)),
	}
	for i := range limits {
		res.Counts[i] = raw[1+2*i]
		if ms := raw[2+2*i]; ms >= 0 {
			res.Oldest[i] = time.UnixMilli(ms)
		}
	}
	return res, nil
}

func (s *RedisStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	lo := "(" + strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, s.prefix+key, lo, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: redis count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) SetBlock(ctx context.Context, key string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	if err := s.client.Set(ctx, s.prefix+key, until.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis block: %w", err)
	}
	return nil
}

func (s *RedisStore) BlockedUntil(ctx context.Context, key string, now time.Time) (time.Time, error) {
	ms, err := s.client.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("ratelimit: redis blocked: %w", err)
	}
	until := time.UnixMilli(ms)
	if !until.After(now) {
		return time.Time{}, nil
	}
	return until, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis reset: %w", err)
	}
	return nil
}
