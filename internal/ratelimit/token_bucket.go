// Package ratelimit throttles capture submissions per visitor session with a
// token bucket kept in redis, so every API replica shares the same budget.
// Video captures cost more than stills since each one runs ffmpeg.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dunamismax/boothflow/internal/config"
)

const keyPrefix = "boothflow:ratelimit"

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// takeScript refills the bucket for the elapsed time, then tries to take
// ARGV[4] tokens. It returns {allowed, remaining, retry_after_ms}.
var takeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now_ms

tokens = math.min(capacity, tokens + math.max(0, now_ms - ts) * refill_per_ms)

local allowed = 0
local wait_ms = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  wait_ms = math.ceil((cost - tokens) / refill_per_ms)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now_ms)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, math.floor(tokens), wait_ms}
`)

// Bucket is a per-subject token bucket refilled at Capacity tokens per window.
type Bucket struct {
	client      redis.UniversalClient
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	now         func() time.Time
}

func New(client redis.UniversalClient, cfg config.RateLimitConfig) (*Bucket, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Capacity <= 0 {
		return nil, errors.New("capacity must be positive")
	}
	if cfg.WindowMS <= 0 {
		return nil, errors.New("window must be positive")
	}

	window := time.Duration(cfg.WindowMS) * time.Millisecond
	return &Bucket{
		client:      client,
		capacity:    int64(cfg.Capacity),
		refillPerMS: float64(cfg.Capacity) / float64(cfg.WindowMS),
		ttl:         2 * window,
		now:         time.Now,
	}, nil
}

// Take spends cost tokens from the bucket of subject, usually a session id
// joined with the route.
func (b *Bucket) Take(ctx context.Context, subject string, cost int64) (Decision, error) {
	if cost <= 0 {
		cost = 1
	}
	if cost > b.capacity {
		return Decision{}, fmt.Errorf("cost %d exceeds bucket capacity %d", cost, b.capacity)
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}

	raw, err := takeScript.Run(ctx, b.client, []string{keyPrefix + ":" + subject},
		b.capacity,
		b.refillPerMS,
		b.now().UTC().UnixMilli(),
		cost,
		b.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}
	return parseReply(raw)
}

func parseReply(raw any) (Decision, error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("unexpected token bucket reply %v", raw)
	}

	var fields [3]int64
	for i, v := range values {
		n, err := asInt64(v)
		if err != nil {
			return Decision{}, fmt.Errorf("token bucket reply field %d: %w", i, err)
		}
		fields[i] = n
	}

	return Decision{
		Allowed:    fields[0] == 1,
		Remaining:  fields[1],
		RetryAfter: time.Duration(fields[2]) * time.Millisecond,
	}, nil
}

func asInt64(in any) (int64, error) {
	switch v := in.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", in)
	}
}
