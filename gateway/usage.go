// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/console"
)

// UsageTracker records per-request usage counters in the shared cache. The
// per-day hashes feed operational dashboards; the durable monthly rollup
// lives in the relational store via accounting.
type UsageTracker struct {
	log       *zap.Logger
	cache     *redis.Client
	retention time.Duration

	now func() time.Time
}

// NewUsageTracker creates the tracker; retention bounds the counter keys.
func NewUsageTracker(log *zap.Logger, cache *redis.Client, retention time.Duration) *UsageTracker {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &UsageTracker{log: log, cache: cache, retention: retention, now: time.Now}
}

// Record increments the tenant's and project's counters for today. All
// increments and expiries commit in one MULTI/EXEC so partial writes cannot
// double count. Failures are logged, never surfaced.
func (tracker *UsageTracker) Record(ctx context.Context, tc console.TenantContext) {
	now := tracker.now().UTC()
	day := now.Format("2006-01-02")
	hour := fmt.Sprintf("hour:%02d", now.Hour())

	tenantKey := "usage:" + tc.TenantID.String() + ":" + day
	projectKey := "usage:" + tc.TenantID.String() + ":" + tc.ProjectID.String() + ":" + day

	pipe := tracker.cache.TxPipeline()
	pipe.HIncrBy(ctx, tenantKey, "requests", 1)
	pipe.HIncrBy(ctx, tenantKey, hour, 1)
	pipe.HIncrBy(ctx, projectKey, "requests", 1)
	pipe.HIncrBy(ctx, projectKey, hour, 1)
	pipe.Expire(ctx, tenantKey, tracker.retention)
	pipe.Expire(ctx, projectKey, tracker.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		tracker.log.Error("usage tracking failed",
			zap.Stringer("tenantID", tc.TenantID), zap.Error(err))
	}
}

// TenantCounters reads the tenant's live counters for a day, used by the
// usage endpoint alongside the durable rollup.
func (tracker *UsageTracker) TenantCounters(ctx context.Context, tenantID string, day string) (map[string]string, error) {
	fields, err := tracker.cache.HGetAll(ctx, "usage:"+tenantID+":"+day).Result()
	return fields, Error.Wrap(err)
}
