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

// ensures that leaderboards implements console.Leaderboards.
var _ console.Leaderboards = (*leaderboards)(nil)

type leaderboards struct {
	db *sqlx.DB
}

type leaderboardRow struct {
	ID            uuid.UUID `db:"id"`
	ProjectID     uuid.UUID `db:"project_id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	SortOrder     string    `db:"sort_order"`
	UpdateMode    string    `db:"update_mode"`
	ResetSchedule string    `db:"reset_schedule"`
	TTLDays       int       `db:"ttl_days"`
	IsActive      bool      `db:"is_active"`
	Metadata      []byte    `db:"metadata"`
	CreatedAt     time.Time `db:"created_at"`
}

func (row leaderboardRow) toLeaderboard() (*console.Leaderboard, error) {
	metadata, err := metadataFromJSON(row.Metadata)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &console.Leaderboard{
		ID:            row.ID,
		ProjectID:     row.ProjectID,
		Name:          row.Name,
		Description:   row.Description,
		SortOrder:     console.SortOrder(row.SortOrder),
		UpdateMode:    console.UpdateMode(row.UpdateMode),
		ResetSchedule: row.ResetSchedule,
		TTLDays:       row.TTLDays,
		IsActive:      row.IsActive,
		Metadata:      metadata,
		CreatedAt:     row.CreatedAt,
	}, nil
}

const leaderboardColumns = `id, project_id, name, description, sort_order, update_mode, reset_schedule, ttl_days, is_active, metadata, created_at`

func (repo *leaderboards) Insert(ctx context.Context, board *console.Leaderboard) (_ *console.Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	metadata, err := metadataJSON(board.Metadata)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var row leaderboardRow
	err = repo.db.GetContext(ctx, &row, `
		INSERT INTO leaderboards (id, project_id, name, description, sort_order, update_mode, reset_schedule, ttl_days, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+leaderboardColumns+`
	`, board.ID, board.ProjectID, board.Name, board.Description,
		string(board.SortOrder), string(board.UpdateMode),
		board.ResetSchedule, board.TTLDays, board.IsActive, metadata)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierr.ErrConflict.New("leaderboard name already used in project")
		}
		return nil, Error.Wrap(err)
	}
	return row.toLeaderboard()
}

func (repo *leaderboards) Get(ctx context.Context, id uuid.UUID) (_ *console.Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	var row leaderboardRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT `+leaderboardColumns+` FROM leaderboards WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return row.toLeaderboard()
}

func (repo *leaderboards) GetByProjectID(ctx context.Context, projectID uuid.UUID) (_ []console.Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	var rows []leaderboardRow
	err = repo.db.SelectContext(ctx, &rows, `
		SELECT `+leaderboardColumns+`
		FROM leaderboards WHERE project_id = $1
		ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	result := make([]console.Leaderboard, 0, len(rows))
	for _, row := range rows {
		board, err := row.toLeaderboard()
		if err != nil {
			return nil, err
		}
		result = append(result, *board)
	}
	return result, nil
}

func (repo *leaderboards) Update(ctx context.Context, board *console.Leaderboard) (err error) {
	defer mon.Task()(&ctx)(&err)

	metadata, err := metadataJSON(board.Metadata)
	if err != nil {
		return Error.Wrap(err)
	}

	_, err = repo.db.ExecContext(ctx, `
		UPDATE leaderboards
		SET name = $2, description = $3, sort_order = $4, update_mode = $5,
			reset_schedule = $6, ttl_days = $7, is_active = $8, metadata = $9
		WHERE id = $1
	`, board.ID, board.Name, board.Description,
		string(board.SortOrder), string(board.UpdateMode),
		board.ResetSchedule, board.TTLDays, board.IsActive, metadata)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.ErrConflict.New("leaderboard name already used in project")
		}
		return Error.Wrap(err)
	}
	return nil
}

func (repo *leaderboards) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `DELETE FROM leaderboards WHERE id = $1`, id)
	return Error.Wrap(err)
}

func (repo *leaderboards) CountByTenant(ctx context.Context, tenantID uuid.UUID) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	var count int64
	err = repo.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM leaderboards l
		JOIN projects p ON p.id = l.project_id
		WHERE p.tenant_id = $1
	`, tenantID)
	return count, Error.Wrap(err)
}

func (repo *leaderboards) ListScheduled(ctx context.Context) (_ []console.Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	var rows []leaderboardRow
	err = repo.db.SelectContext(ctx, &rows, `
		SELECT `+leaderboardColumns+`
		FROM leaderboards
		WHERE is_active AND reset_schedule <> ''
	`)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	result := make([]console.Leaderboard, 0, len(rows))
	for _, row := range rows {
		board, err := row.toLeaderboard()
		if err != nil {
			return nil, err
		}
		result = append(result, *board)
	}
	return result, nil
}
