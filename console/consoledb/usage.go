// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package consoledb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/podiumhq/podium/accounting"
)

// ensures that usage implements accounting.DB.
var _ accounting.DB = (*usage)(nil)

type usage struct {
	db *sqlx.DB
}

type usageRow struct {
	TenantID         uuid.UUID `db:"tenant_id"`
	ProjectID        uuid.UUID `db:"project_id"`
	Date             time.Time `db:"date"`
	ScoreUpdates     int64     `db:"score_updates"`
	LeaderboardReads int64     `db:"leaderboard_reads"`
	TotalRequests    int64     `db:"total_requests"`
}

func (row usageRow) toRecord() accounting.UsageRecord {
	return accounting.UsageRecord{
		TenantID:         row.TenantID,
		ProjectID:        row.ProjectID,
		Date:             row.Date,
		ScoreUpdates:     row.ScoreUpdates,
		LeaderboardReads: row.LeaderboardReads,
		TotalRequests:    row.TotalRequests,
	}
}

func (repo *usage) Upsert(ctx context.Context, tenantID, projectID uuid.UUID, date time.Time, delta accounting.UsageDelta) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO usage_records (tenant_id, project_id, date, score_updates, leaderboard_reads, total_requests)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, project_id, date) DO UPDATE
		SET score_updates = usage_records.score_updates + EXCLUDED.score_updates,
			leaderboard_reads = usage_records.leaderboard_reads + EXCLUDED.leaderboard_reads,
			total_requests = usage_records.total_requests + EXCLUDED.total_requests
	`, tenantID, projectID, date, delta.ScoreUpdates, delta.LeaderboardReads, delta.TotalRequests)
	return Error.Wrap(err)
}

func (repo *usage) MonthToDate(ctx context.Context, tenantID uuid.UUID, ts time.Time) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	monthStart := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	var total int64
	err = repo.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(total_requests), 0)
		FROM usage_records
		WHERE tenant_id = $1 AND date >= $2 AND date <= $3
	`, tenantID, monthStart, ts)
	return total, Error.Wrap(err)
}

func (repo *usage) GetByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (_ []accounting.UsageRecord, err error) {
	defer mon.Task()(&ctx)(&err)

	var rows []usageRow
	err = repo.db.SelectContext(ctx, &rows, `
		SELECT tenant_id, project_id, date, score_updates, leaderboard_reads, total_requests
		FROM usage_records
		WHERE tenant_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, project_id
	`, tenantID, from, to)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	result := make([]accounting.UsageRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toRecord())
	}
	return result, nil
}
