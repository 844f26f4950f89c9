// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package consoledb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
)

// ensures that subscriptions implements console.Subscriptions.
var _ console.Subscriptions = (*subscriptions)(nil)

type subscriptions struct {
	db *sqlx.DB
}

type subscriptionRow struct {
	ID                uuid.UUID `db:"id"`
	TenantID          uuid.UUID `db:"tenant_id"`
	PlanType          string    `db:"plan_type"`
	Status            string    `db:"status"`
	PeriodStart       time.Time `db:"period_start"`
	PeriodEnd         time.Time `db:"period_end"`
	CancelAtPeriodEnd bool      `db:"cancel_at_period_end"`
	CreatedAt         time.Time `db:"created_at"`
}

func (row subscriptionRow) toSubscription() *console.Subscription {
	return &console.Subscription{
		ID:                row.ID,
		TenantID:          row.TenantID,
		PlanType:          console.PlanType(row.PlanType),
		Status:            console.SubscriptionStatus(row.Status),
		PeriodStart:       row.PeriodStart,
		PeriodEnd:         row.PeriodEnd,
		CancelAtPeriodEnd: row.CancelAtPeriodEnd,
		CreatedAt:         row.CreatedAt,
	}
}

const subscriptionColumns = `id, tenant_id, plan_type, status, period_start, period_end, cancel_at_period_end, created_at`

func (repo *subscriptions) Insert(ctx context.Context, sub *console.Subscription) (_ *console.Subscription, err error) {
	defer mon.Task()(&ctx)(&err)

	var row subscriptionRow
	err = repo.db.GetContext(ctx, &row, `
		INSERT INTO subscriptions (id, tenant_id, plan_type, status, period_start, period_end, cancel_at_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+subscriptionColumns+`
	`, sub.ID, sub.TenantID, string(sub.PlanType), string(sub.Status),
		sub.PeriodStart, sub.PeriodEnd, sub.CancelAtPeriodEnd)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierr.ErrConflict.New("tenant already has an active subscription")
		}
		return nil, Error.Wrap(err)
	}
	return row.toSubscription(), nil
}

func (repo *subscriptions) Get(ctx context.Context, id uuid.UUID) (_ *console.Subscription, err error) {
	defer mon.Task()(&ctx)(&err)

	var row subscriptionRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return row.toSubscription(), nil
}

func (repo *subscriptions) GetActiveByTenantID(ctx context.Context, tenantID uuid.UUID) (_ *console.Subscription, err error) {
	defer mon.Task()(&ctx)(&err)

	var row subscriptionRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE tenant_id = $1 AND status = 'active'
	`, tenantID)
	if err != nil {
		return nil, err
	}
	return row.toSubscription(), nil
}

func (repo *subscriptions) Update(ctx context.Context, sub *console.Subscription) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET plan_type = $2, status = $3, period_start = $4, period_end = $5, cancel_at_period_end = $6
		WHERE id = $1
	`, sub.ID, string(sub.PlanType), string(sub.Status),
		sub.PeriodStart, sub.PeriodEnd, sub.CancelAtPeriodEnd)
	return Error.Wrap(err)
}
