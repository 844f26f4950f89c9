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

// ensures that projects implements console.Projects.
var _ console.Projects = (*projects)(nil)

type projects struct {
	db *sqlx.DB
}

type projectRow struct {
	ID        uuid.UUID `db:"id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (row projectRow) toProject() *console.Project {
	return &console.Project{ID: row.ID, TenantID: row.TenantID, Name: row.Name, CreatedAt: row.CreatedAt}
}

func (repo *projects) Insert(ctx context.Context, project *console.Project) (_ *console.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	var row projectRow
	err = repo.db.GetContext(ctx, &row, `
		INSERT INTO projects (id, tenant_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, name, created_at
	`, project.ID, project.TenantID, project.Name)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return row.toProject(), nil
}

func (repo *projects) Get(ctx context.Context, id uuid.UUID) (_ *console.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	var row projectRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT id, tenant_id, name, created_at FROM projects WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return row.toProject(), nil
}

func (repo *projects) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (_ []console.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	var rows []projectRow
	err = repo.db.SelectContext(ctx, &rows, `
		SELECT id, tenant_id, name, created_at
		FROM projects WHERE tenant_id = $1
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	result := make([]console.Project, 0, len(rows))
	for _, row := range rows {
		result = append(result, *row.toProject())
	}
	return result, nil
}

func (repo *projects) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return Error.Wrap(err)
}
