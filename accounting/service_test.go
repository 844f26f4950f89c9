// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package accounting_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/console/consoletest"
)

// memUsage is an in-memory accounting.DB.
type memUsage struct {
	rows []accounting.UsageRecord
}

func (m *memUsage) Upsert(ctx context.Context, tenantID, projectID uuid.UUID, date time.Time, delta accounting.UsageDelta) error {
	for i := range m.rows {
		if m.rows[i].TenantID == tenantID && m.rows[i].ProjectID == projectID && m.rows[i].Date.Equal(date) {
			m.rows[i].ScoreUpdates += delta.ScoreUpdates
			m.rows[i].LeaderboardReads += delta.LeaderboardReads
			m.rows[i].TotalRequests += delta.TotalRequests
			return nil
		}
	}
	m.rows = append(m.rows, accounting.UsageRecord{
		TenantID:         tenantID,
		ProjectID:        projectID,
		Date:             date,
		ScoreUpdates:     delta.ScoreUpdates,
		LeaderboardReads: delta.LeaderboardReads,
		TotalRequests:    delta.TotalRequests,
	})
	return nil
}

func (m *memUsage) MonthToDate(ctx context.Context, tenantID uuid.UUID, ts time.Time) (int64, error) {
	var total int64
	for _, row := range m.rows {
		if row.TenantID == tenantID && row.Date.Year() == ts.Year() && row.Date.Month() == ts.Month() {
			total += row.TotalRequests
		}
	}
	return total, nil
}

func (m *memUsage) GetByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]accounting.UsageRecord, error) {
	var result []accounting.UsageRecord
	for _, row := range m.rows {
		if row.TenantID == tenantID && !row.Date.Before(from) && !row.Date.After(to) {
			result = append(result, row)
		}
	}
	return result, nil
}

func TestRecordUsage(t *testing.T) {
	ctx := context.Background()
	usage := &memUsage{}
	service := accounting.NewService(zaptest.NewLogger(t), usage, consoletest.NewDB())

	tenantID, projectID := uuid.New(), uuid.New()

	// TotalRequests defaults to the sum of the typed counters.
	require.NoError(t, service.RecordUsage(ctx, tenantID, projectID, accounting.UsageDelta{
		ScoreUpdates:     3,
		LeaderboardReads: 2,
	}))
	require.Len(t, usage.rows, 1)
	assert.Equal(t, int64(5), usage.rows[0].TotalRequests)

	// Same-day deltas accumulate into one row.
	require.NoError(t, service.RecordUsage(ctx, tenantID, projectID, accounting.UsageDelta{
		ScoreUpdates:  1,
		TotalRequests: 1,
	}))
	require.Len(t, usage.rows, 1)
	assert.Equal(t, int64(4), usage.rows[0].ScoreUpdates)
	assert.Equal(t, int64(6), usage.rows[0].TotalRequests)
}

func TestCheckTenant(t *testing.T) {
	ctx := context.Background()
	usage := &memUsage{}
	store := consoletest.NewDB()
	service := accounting.NewService(zaptest.NewLogger(t), usage, store)

	tenantID := uuid.New()

	t.Run("fresh tenant is within limits", func(t *testing.T) {
		check, err := service.CheckTenant(ctx, tenantID, console.PlanFree)
		require.NoError(t, err)
		assert.True(t, check.WithinLimits)
		assert.Equal(t, int64(10_000), check.Requests.Limit)
	})

	t.Run("request budget exhaustion flips the check", func(t *testing.T) {
		require.NoError(t, service.RecordUsage(ctx, tenantID, uuid.New(), accounting.UsageDelta{
			TotalRequests: 10_000,
		}))

		check, err := service.CheckTenant(ctx, tenantID, console.PlanFree)
		require.NoError(t, err)
		assert.False(t, check.Requests.WithinLimit)
		assert.False(t, check.WithinLimits)
		assert.True(t, check.Leaderboards.WithinLimit, "other dimensions unaffected")
	})

	t.Run("plan upgrade restores headroom", func(t *testing.T) {
		check, err := service.CheckTenant(ctx, tenantID, console.PlanPro)
		require.NoError(t, err)
		assert.True(t, check.Requests.WithinLimit)
		assert.Equal(t, int64(1_000_000), check.Requests.Limit)
	})

	t.Run("unknown plan falls back to free limits", func(t *testing.T) {
		check, err := service.CheckTenant(ctx, uuid.New(), "mystery")
		require.NoError(t, err)
		assert.Equal(t, int64(10_000), check.Requests.Limit)
	})
}

func TestUsageCheck_UnknownSubscription(t *testing.T) {
	service := accounting.NewService(zaptest.NewLogger(t), &memUsage{}, consoletest.NewDB())

	_, err := service.UsageCheck(context.Background(), uuid.New())
	assert.True(t, apierr.ErrNotFound.Has(err))
}

func TestLimitsFor(t *testing.T) {
	free := accounting.LimitsFor(console.PlanFree)
	pro := accounting.LimitsFor(console.PlanPro)
	enterprise := accounting.LimitsFor(console.PlanEnterprise)

	assert.Equal(t, accounting.PlanLimits{Requests: 10_000, Leaderboards: 5, APIKeys: 2}, free)
	assert.Equal(t, accounting.PlanLimits{Requests: 1_000_000, Leaderboards: 50, APIKeys: 10}, pro)
	assert.Equal(t, accounting.PlanLimits{Requests: 10_000_000, Leaderboards: 9_999, APIKeys: 9_999}, enterprise)
	assert.Equal(t, free, accounting.LimitsFor("unknown"))
}
