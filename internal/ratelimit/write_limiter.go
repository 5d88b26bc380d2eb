package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billdesk/internal/config"
)

const keyWriteOrg = "billdesk:write:org:%s"

// WriteLimiter throttles mutating API calls per organization.
// A nil or disabled limiter allows everything.
type WriteLimiter struct {
	enabled bool

	client *redis.Client
	bucket *bucket

	rate  float64
	burst int
}

func NewWriteLimiter(cfg config.Config) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errors.New("write rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &WriteLimiter{
		enabled: true,
		client:  client,
		bucket:  newBucket(client),
		rate:    limitCfg.WriteRate,
		burst:   limitCfg.WriteBurst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WriteLimiter) Allow(ctx context.Context, orgID string) (*Decision, error) {
	if !l.Enabled() {
		return &Decision{Allowed: true}, nil
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return &Decision{}, errors.New("rate limiter org is empty")
	}
	return l.bucket.take(ctx, fmt.Sprintf(keyWriteOrg, orgID), l.rate, l.burst)
}

func (l *WriteLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
