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

// ensures that apikeys implements console.APIKeys.
var _ console.APIKeys = (*apikeys)(nil)

type apikeys struct {
	db *sqlx.DB
}

type apikeyRow struct {
	ID          uuid.UUID  `db:"id"`
	ProjectID   uuid.UUID  `db:"project_id"`
	Name        string     `db:"name"`
	KeyHash     []byte     `db:"key_hash"`
	Fingerprint string     `db:"fingerprint"`
	CreatedAt   time.Time  `db:"created_at"`
	LastUsedAt  *time.Time `db:"last_used_at"`
	RevokedAt   *time.Time `db:"revoked_at"`
}

func (row apikeyRow) toKey() *console.APIKey {
	return &console.APIKey{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		Name:        row.Name,
		KeyHash:     row.KeyHash,
		Fingerprint: row.Fingerprint,
		CreatedAt:   row.CreatedAt,
		LastUsedAt:  row.LastUsedAt,
		RevokedAt:   row.RevokedAt,
	}
}

const apikeyColumns = `id, project_id, name, key_hash, fingerprint, created_at, last_used_at, revoked_at`

func (repo *apikeys) Insert(ctx context.Context, key *console.APIKey) (_ *console.APIKey, err error) {
	defer mon.Task()(&ctx)(&err)

	var row apikeyRow
	err = repo.db.GetContext(ctx, &row, `
		INSERT INTO api_keys (id, project_id, name, key_hash, fingerprint)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+apikeyColumns+`
	`, key.ID, key.ProjectID, key.Name, key.KeyHash, key.Fingerprint)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return row.toKey(), nil
}

func (repo *apikeys) Get(ctx context.Context, id uuid.UUID) (_ *console.APIKey, err error) {
	defer mon.Task()(&ctx)(&err)

	var row apikeyRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT `+apikeyColumns+` FROM api_keys WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return row.toKey(), nil
}

func (repo *apikeys) GetByFingerprint(ctx context.Context, fingerprint string) (_ *console.APIKey, err error) {
	defer mon.Task()(&ctx)(&err)

	// Live keys first so validation does at most one hash comparison.
	var row apikeyRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT `+apikeyColumns+`
		FROM api_keys
		WHERE fingerprint = $1
		ORDER BY (revoked_at IS NULL) DESC, created_at DESC
		LIMIT 1
	`, fingerprint)
	if err != nil {
		return nil, err
	}
	return row.toKey(), nil
}

func (repo *apikeys) GetByProjectID(ctx context.Context, projectID uuid.UUID) (_ []console.APIKey, err error) {
	defer mon.Task()(&ctx)(&err)

	var rows []apikeyRow
	err = repo.db.SelectContext(ctx, &rows, `
		SELECT `+apikeyColumns+`
		FROM api_keys WHERE project_id = $1
		ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	result := make([]console.APIKey, 0, len(rows))
	for _, row := range rows {
		result = append(result, *row.toKey())
	}
	return result, nil
}

func (repo *apikeys) Revoke(ctx context.Context, id uuid.UUID, at time.Time) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL
	`, id, at)
	return Error.Wrap(err)
}

func (repo *apikeys) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = $2 WHERE id = $1
	`, id, at)
	return Error.Wrap(err)
}

func (repo *apikeys) CountActiveByTenant(ctx context.Context, tenantID uuid.UUID) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	var count int64
	err = repo.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM api_keys ak
		JOIN projects p ON p.id = ak.project_id
		WHERE p.tenant_id = $1 AND ak.revoked_at IS NULL
	`, tenantID)
	return count, Error.Wrap(err)
}
