// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package consoledb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/podiumhq/podium/console"
)

// ensures that seasons implements console.Seasons.
var _ console.Seasons = (*seasons)(nil)

type seasons struct {
	db *sqlx.DB
}

type seasonRow struct {
	ID            uuid.UUID `db:"id"`
	LeaderboardID uuid.UUID `db:"leaderboard_id"`
	Name          string    `db:"name"`
	StartDate     time.Time `db:"start_date"`
	EndDate       time.Time `db:"end_date"`
	IsActive      bool      `db:"is_active"`
	Metadata      []byte    `db:"metadata"`
	CreatedAt     time.Time `db:"created_at"`
}

func (row seasonRow) toSeason() (*console.Season, error) {
	metadata, err := metadataFromJSON(row.Metadata)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &console.Season{
		ID:            row.ID,
		LeaderboardID: row.LeaderboardID,
		Name:          row.Name,
		StartDate:     row.StartDate,
		EndDate:       row.EndDate,
		IsActive:      row.IsActive,
		Metadata:      metadata,
		CreatedAt:     row.CreatedAt,
	}, nil
}

const seasonColumns = `id, leaderboard_id, name, start_date, end_date, is_active, metadata, created_at`

func (repo *seasons) Insert(ctx context.Context, season *console.Season) (_ *console.Season, err error) {
	defer mon.Task()(&ctx)(&err)

	metadata, err := metadataJSON(season.Metadata)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var row seasonRow
	err = repo.db.GetContext(ctx, &row, `
		INSERT INTO seasons (id, leaderboard_id, name, start_date, end_date, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+seasonColumns+`
	`, season.ID, season.LeaderboardID, season.Name,
		season.StartDate, season.EndDate, season.IsActive, metadata)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return row.toSeason()
}

func (repo *seasons) Get(ctx context.Context, id uuid.UUID) (_ *console.Season, err error) {
	defer mon.Task()(&ctx)(&err)

	var row seasonRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT `+seasonColumns+` FROM seasons WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return row.toSeason()
}

func (repo *seasons) GetByLeaderboardID(ctx context.Context, leaderboardID uuid.UUID) (_ []console.Season, err error) {
	defer mon.Task()(&ctx)(&err)

	var rows []seasonRow
	err = repo.db.SelectContext(ctx, &rows, `
		SELECT `+seasonColumns+`
		FROM seasons WHERE leaderboard_id = $1
		ORDER BY start_date
	`, leaderboardID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	result := make([]console.Season, 0, len(rows))
	for _, row := range rows {
		season, err := row.toSeason()
		if err != nil {
			return nil, err
		}
		result = append(result, *season)
	}
	return result, nil
}

func (repo *seasons) Update(ctx context.Context, season *console.Season) (err error) {
	defer mon.Task()(&ctx)(&err)

	metadata, err := metadataJSON(season.Metadata)
	if err != nil {
		return Error.Wrap(err)
	}

	_, err = repo.db.ExecContext(ctx, `
		UPDATE seasons
		SET name = $2, start_date = $3, end_date = $4, is_active = $5, metadata = $6
		WHERE id = $1
	`, season.ID, season.Name, season.StartDate, season.EndDate, season.IsActive, metadata)
	return Error.Wrap(err)
}

func (repo *seasons) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `DELETE FROM seasons WHERE id = $1`, id)
	return Error.Wrap(err)
}
