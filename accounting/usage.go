// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package accounting aggregates usage and enforces monthly plan quotas.
package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one tenant/project/day aggregation row. Rows are upserted
// during the day and frozen after month close.
type UsageRecord struct {
	TenantID         uuid.UUID `json:"tenantId"`
	ProjectID        uuid.UUID `json:"projectId"`
	Date             time.Time `json:"date"`
	ScoreUpdates     int64     `json:"scoreUpdates"`
	LeaderboardReads int64     `json:"leaderboardReads"`
	TotalRequests    int64     `json:"totalRequests"`
}

// UsageDelta is the per-request increment applied to today's row.
type UsageDelta struct {
	ScoreUpdates     int64 `json:"scoreUpdates"`
	LeaderboardReads int64 `json:"leaderboardReads"`
	TotalRequests    int64 `json:"totalRequests"`
}

// DB is the durable usage store.
type DB interface {
	// Upsert adds the delta to the row keyed (tenant, project, date),
	// creating it when absent.
	Upsert(ctx context.Context, tenantID, projectID uuid.UUID, date time.Time, delta UsageDelta) error
	// MonthToDate sums total requests of the tenant for the month of ts.
	MonthToDate(ctx context.Context, tenantID uuid.UUID, ts time.Time) (int64, error)
	// GetByTenant returns rows of the tenant in [from, to].
	GetByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]UsageRecord, error)
}

// ScoreEvent is the immutable analytics record of one score submission,
// projected from the stream by the worker.
type ScoreEvent struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenantId"`
	ProjectID     uuid.UUID `json:"projectId"`
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	UserID        string    `json:"userId"`
	Score         float64   `json:"score"`
	Increment     bool      `json:"increment"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ScoreEvents is the append-only score event log. Duplicate event ids are
// ignored so stream redelivery stays harmless.
type ScoreEvents interface {
	// Insert appends one event; replays of the same id are no-ops.
	Insert(ctx context.Context, event ScoreEvent) error
}
