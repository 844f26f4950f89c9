// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package ratelimit implements the per-tenant token bucket on the shared
// cache. Bucket state must be read, refilled and consumed atomically so
// every gateway replica sees one bucket per tenant; the whole update runs
// as a single Lua script.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/console"
)

var (
	mon = monkit.Package()

	// Error is the default ratelimit errs class.
	Error = errs.Class("ratelimit")
)

// Bucket holds the token-bucket parameters of a plan.
type Bucket struct {
	Capacity   float64
	RefillRate float64 // tokens per second
}

var planBuckets = map[console.PlanType]Bucket{
	console.PlanFree:       {Capacity: 10, RefillRate: 1},
	console.PlanPro:        {Capacity: 100, RefillRate: 50},
	console.PlanEnterprise: {Capacity: 500, RefillRate: 200},
}

// BucketFor returns the bucket parameters of a plan; unknown plans get the
// free tier.
func BucketFor(plan console.PlanType) Bucket {
	if bucket, ok := planBuckets[plan]; ok {
		return bucket
	}
	return planBuckets[console.PlanFree]
}

// tokenBucketScript refills and consumes in one atomic step. State is the
// pair (tokens, last_refill) in a hash with a short TTL; idle tenants cost
// nothing once the key expires.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = capacity
local state = redis.call("HMGET", KEYS[1], "tokens", "last_refill")
if state[1] then
	tokens = tonumber(state[1])
	local elapsed = (now - tonumber(state[2])) / 1000.0
	if elapsed > 0 then
		tokens = math.min(capacity, tokens + elapsed * refill)
	end
end

local allowed = 0
if tokens >= cost then
	tokens = tokens - cost
	allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "last_refill", now)
redis.call("EXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`)

// Config configures the limiter.
type Config struct {
	// Enabled turns rate limiting on.
	Enabled bool
	// KeyTTL is the bucket key expiry.
	KeyTTL time.Duration
	// FailClosed denies requests when the cache is unreachable instead of
	// the default fail-open.
	FailClosed bool
}

// DefaultConfig returns the limiter defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, KeyTTL: 60 * time.Second}
}

// Result is the outcome of one admission decision.
type Result struct {
	Allowed bool
	// Limit is the bucket capacity, for X-RateLimit-Limit.
	Limit int64
	// Remaining is the floored token count after the decision.
	Remaining int64
	// ResetAt is when the bucket is full again, unix seconds.
	ResetAt int64
	// RetryAfter is the wait until the request would be admitted; only
	// meaningful when denied.
	RetryAfter time.Duration
	// FailedOpen marks a decision taken without the cache.
	FailedOpen bool
}

// Limiter admits requests against per-tenant buckets.
type Limiter struct {
	log    *zap.Logger
	cache  *redis.Client
	config Config

	now func() time.Time
}

// NewLimiter creates a limiter on the shared cache connection.
func NewLimiter(log *zap.Logger, cache *redis.Client, config Config) *Limiter {
	if config.KeyTTL <= 0 {
		config.KeyTTL = 60 * time.Second
	}
	return &Limiter{log: log, cache: cache, config: config, now: time.Now}
}

// Allow consumes one token from the tenant's bucket. When the cache is
// unreachable the limiter fails open (or closed behind the flag) and logs.
func (limiter *Limiter) Allow(ctx context.Context, tenantID uuid.UUID, plan console.PlanType) (_ Result, err error) {
	defer mon.Task()(&ctx)(&err)

	bucket := BucketFor(plan)
	if !limiter.config.Enabled {
		return Result{Allowed: true, Limit: int64(bucket.Capacity), Remaining: int64(bucket.Capacity)}, nil
	}

	now := limiter.now()
	raw, err := tokenBucketScript.Run(ctx, limiter.cache,
		[]string{"rl:" + tenantID.String()},
		bucket.Capacity,
		bucket.RefillRate,
		now.UnixMilli(),
		1,
		int64(limiter.config.KeyTTL.Seconds()),
	).Result()
	if err != nil {
		if limiter.config.FailClosed {
			return Result{}, Error.Wrap(err)
		}
		limiter.log.Error("rate limit cache unreachable, failing open", zap.Error(err))
		mon.Counter("ratelimit_fail_open").Inc(1)
		return Result{
			Allowed:    true,
			Limit:      int64(bucket.Capacity),
			Remaining:  int64(bucket.Capacity),
			FailedOpen: true,
		}, nil
	}

	reply, ok := raw.([]any)
	if !ok || len(reply) != 2 {
		return Result{}, Error.New("unexpected script reply %v", raw)
	}
	allowed, _ := reply[0].(int64)
	tokensStr, _ := reply[1].(string)
	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		return Result{}, Error.Wrap(err)
	}

	result := Result{
		Allowed:   allowed == 1,
		Limit:     int64(bucket.Capacity),
		Remaining: int64(math.Floor(tokens)),
	}
	if missing := bucket.Capacity - tokens; missing > 0 {
		result.ResetAt = now.Add(time.Duration(missing / bucket.RefillRate * float64(time.Second))).Unix()
	} else {
		result.ResetAt = now.Unix()
	}
	if !result.Allowed {
		wait := math.Ceil((1 - tokens) / bucket.RefillRate)
		result.RetryAfter = time.Duration(wait) * time.Second
	}
	return result, nil
}

// SetNowFunc overrides the clock, for tests.
func (limiter *Limiter) SetNowFunc(now func() time.Time) { limiter.now = now }
