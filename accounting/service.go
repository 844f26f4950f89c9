// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
)

var (
	mon = monkit.Package()

	// Error is the default accounting errs class.
	Error = errs.Class("accounting")
)

// Service aggregates usage and answers quota checks.
type Service struct {
	log     *zap.Logger
	usage   DB
	console console.DB
}

// NewService creates an accounting service.
func NewService(log *zap.Logger, usage DB, consoleDB console.DB) *Service {
	return &Service{log: log, usage: usage, console: consoleDB}
}

// RecordUsage adds the deltas to today's (tenant, project) row. When
// TotalRequests is unset it defaults to the sum of the typed counters so the
// monthly budget always moves.
func (s *Service) RecordUsage(ctx context.Context, tenantID, projectID uuid.UUID, delta UsageDelta) (err error) {
	defer mon.Task()(&ctx)(&err)

	if delta.TotalRequests == 0 {
		delta.TotalRequests = delta.ScoreUpdates + delta.LeaderboardReads
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return Error.Wrap(s.usage.Upsert(ctx, tenantID, projectID, today, delta))
}

// UsageCheck evaluates the subscription's tenant against its plan limits.
func (s *Service) UsageCheck(ctx context.Context, subscriptionID uuid.UUID) (_ *UsageCheck, err error) {
	defer mon.Task()(&ctx)(&err)

	sub, err := s.console.Subscriptions().Get(ctx, subscriptionID)
	if err != nil {
		return nil, apierr.ErrNotFound.New("subscription not found")
	}
	return s.checkTenant(ctx, sub.TenantID, sub.PlanType)
}

// CheckTenant evaluates a tenant directly, used by the gateway's write
// admission gate.
func (s *Service) CheckTenant(ctx context.Context, tenantID uuid.UUID, plan console.PlanType) (_ *UsageCheck, err error) {
	defer mon.Task()(&ctx)(&err)
	return s.checkTenant(ctx, tenantID, plan)
}

func (s *Service) checkTenant(ctx context.Context, tenantID uuid.UUID, plan console.PlanType) (*UsageCheck, error) {
	limits := LimitsFor(plan)

	requests, err := s.usage.MonthToDate(ctx, tenantID, time.Now().UTC())
	if err != nil {
		return nil, Error.Wrap(err)
	}
	boards, err := s.console.Leaderboards().CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	keys, err := s.console.APIKeys().CountActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	check := &UsageCheck{
		Requests:     LimitStatus{Current: requests, Limit: limits.Requests, WithinLimit: requests < limits.Requests},
		Leaderboards: LimitStatus{Current: boards, Limit: limits.Leaderboards, WithinLimit: boards < limits.Leaderboards},
		APIKeys:      LimitStatus{Current: keys, Limit: limits.APIKeys, WithinLimit: keys < limits.APIKeys},
	}
	check.WithinLimits = check.Requests.WithinLimit &&
		check.Leaderboards.WithinLimit &&
		check.APIKeys.WithinLimit
	return check, nil
}

// TenantUsage returns the tenant's rows for the current month to date.
func (s *Service) TenantUsage(ctx context.Context, tenantID uuid.UUID) (_ []UsageRecord, err error) {
	defer mon.Task()(&ctx)(&err)

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	records, err := s.usage.GetByTenant(ctx, tenantID, from, now)
	return records, Error.Wrap(err)
}
