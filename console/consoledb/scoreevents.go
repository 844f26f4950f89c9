// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package consoledb

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/podiumhq/podium/accounting"
)

// ensures that scoreevents implements accounting.ScoreEvents.
var _ accounting.ScoreEvents = (*scoreevents)(nil)

type scoreevents struct {
	db *sqlx.DB
}

// Insert appends one score event. The stream delivers at least once, so a
// replayed event id is simply ignored.
func (repo *scoreevents) Insert(ctx context.Context, event accounting.ScoreEvent) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO score_events (id, tenant_id, project_id, leaderboard_id, user_id, score, increment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, event.TenantID, event.ProjectID, event.LeaderboardID,
		event.UserID, event.Score, event.Increment, event.CreatedAt)
	return Error.Wrap(err)
}
