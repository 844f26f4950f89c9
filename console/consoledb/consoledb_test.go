// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package consoledb

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podiumhq/podium/accounting"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func TestAPIKeys_GetByFingerprint(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := &apikeys{db: db}

	id, projectID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	// The query must order live keys first so validation never compares
	// against a revoked hash when a live one exists.
	mock.ExpectQuery(`ORDER BY \(revoked_at IS NULL\) DESC, created_at DESC`).
		WithArgs("abcdef0123456789").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "name", "key_hash", "fingerprint",
			"created_at", "last_used_at", "revoked_at",
		}).AddRow(id, projectID, "ci", []byte("hash"), "abcdef0123456789", now, nil, nil))

	key, err := repo.GetByFingerprint(ctx, "abcdef0123456789")
	require.NoError(t, err)
	assert.Equal(t, id, key.ID)
	assert.Equal(t, projectID, key.ProjectID)
	assert.False(t, key.Revoked())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeys_RevokeOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := &apikeys{db: db}

	id := uuid.New()
	at := time.Now().UTC()

	// The update is guarded so a second revoke cannot move the timestamp.
	mock.ExpectExec(`UPDATE api_keys SET revoked_at = \$2 WHERE id = \$1 AND revoked_at IS NULL`).
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Revoke(ctx, id, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsage_UpsertAccumulates(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := &usage{db: db}

	tenantID, projectID := uuid.New(), uuid.New()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`ON CONFLICT \(tenant_id, project_id, date\) DO UPDATE`).
		WithArgs(tenantID, projectID, date, int64(2), int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(ctx, tenantID, projectID, date, accounting.UsageDelta{
		ScoreUpdates:     2,
		LeaderboardReads: 1,
		TotalRequests:    3,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsage_MonthToDate(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := &usage{db: db}

	tenantID := uuid.New()
	ts := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	monthStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(total_requests\), 0\)`).
		WithArgs(tenantID, monthStart, ts).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(1234)))

	total, err := repo.MonthToDate(ctx, tenantID, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreEvents_InsertIgnoresReplay(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := &scoreevents{db: db}

	event := accounting.ScoreEvent{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		ProjectID:     uuid.New(),
		LeaderboardID: uuid.New(),
		UserID:        "alice",
		Score:         10,
		CreatedAt:     time.Now().UTC(),
	}

	// First delivery inserts, replay hits the conflict clause and affects
	// zero rows; both succeed.
	mock.ExpectExec(`(?s)INSERT INTO score_events.*ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(event.ID, event.TenantID, event.ProjectID, event.LeaderboardID,
			event.UserID, event.Score, event.Increment, event.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO score_events.*ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(event.ID, event.TenantID, event.ProjectID, event.LeaderboardID,
			event.UserID, event.Score, event.Increment, event.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Insert(ctx, event))
	require.NoError(t, repo.Insert(ctx, event))
	require.NoError(t, mock.ExpectationsWereMet())
}
