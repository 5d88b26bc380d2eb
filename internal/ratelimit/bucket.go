package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// takeScript refills the bucket at KEYS[1] from redis server time and takes one
// token. It returns {allowed, remaining tokens as a string, retry delay in ms}.
const takeScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local t = redis.call("TIME")
local now_ms = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "updated_ms")
local tokens = tonumber(state[1]) or capacity
local updated_ms = tonumber(state[2]) or now_ms

local elapsed = math.max(0, now_ms - updated_ms)
tokens = math.min(capacity, tokens + elapsed * rate / 1000)

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry_ms = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "updated_ms", now_ms)
redis.call("PEXPIRE", KEYS[1], ttl_ms)

return {allowed, tostring(tokens), retry_ms}
`

var (
	errBucketUnconfigured = errors.New("rate limiter not configured")
	errBucketKey          = errors.New("rate limiter key is empty")
	errBucketShape        = errors.New("rate limiter rate and burst must be positive")
	errBucketReply        = errors.New("invalid rate limit script reply")
)

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	client *redis.Client
	script *redis.Script
}

func newBucket(client *redis.Client) *bucket {
	if client == nil {
		return nil
	}
	return &bucket{client: client, script: redis.NewScript(takeScript)}
}

func (b *bucket) take(ctx context.Context, key string, rate float64, burst int) (*Decision, error) {
	switch {
	case b == nil || b.client == nil:
		return &Decision{}, errBucketUnconfigured
	case key == "":
		return &Decision{}, errBucketKey
	case rate <= 0 || burst <= 0:
		return &Decision{}, errBucketShape
	}

	reply, err := b.script.Run(ctx, b.client, []string{key},
		rate, burst, bucketTTL(rate, burst).Milliseconds(),
	).Slice()
	if err != nil {
		return &Decision{}, err
	}
	if len(reply) != 3 {
		return &Decision{}, errBucketReply
	}

	allowed, _ := reply[0].(int64)
	remaining, _ := strconv.ParseFloat(replyString(reply[1]), 64)
	retryMs, _ := reply[2].(int64)

	return &Decision{
		Allowed:    allowed == 1,
		Limit:      burst,
		Remaining:  int(math.Floor(remaining)),
		RetryAfter: time.Duration(retryMs) * time.Millisecond,
	}, nil
}

// bucketTTL keeps idle buckets around for two full refills.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}

func replyString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}
