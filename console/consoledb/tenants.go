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

// ensures that tenants implements console.Tenants.
var _ console.Tenants = (*tenants)(nil)

type tenants struct {
	db *sqlx.DB
}

type tenantRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

func (row tenantRow) toTenant() *console.Tenant {
	return &console.Tenant{ID: row.ID, Name: row.Name, Email: row.Email, CreatedAt: row.CreatedAt}
}

func (repo *tenants) Insert(ctx context.Context, tenant *console.Tenant) (_ *console.Tenant, err error) {
	defer mon.Task()(&ctx)(&err)

	var row tenantRow
	err = repo.db.GetContext(ctx, &row, `
		INSERT INTO tenants (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, created_at
	`, tenant.ID, tenant.Name, tenant.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierr.ErrConflict.New("tenant email already registered")
		}
		return nil, Error.Wrap(err)
	}
	return row.toTenant(), nil
}

func (repo *tenants) Get(ctx context.Context, id uuid.UUID) (_ *console.Tenant, err error) {
	defer mon.Task()(&ctx)(&err)

	var row tenantRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT id, name, email, created_at FROM tenants WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return row.toTenant(), nil
}

func (repo *tenants) GetByEmail(ctx context.Context, email string) (_ *console.Tenant, err error) {
	defer mon.Task()(&ctx)(&err)

	var row tenantRow
	err = repo.db.GetContext(ctx, &row, `
		SELECT id, name, email, created_at FROM tenants WHERE email = $1
	`, email)
	if err != nil {
		return nil, err
	}
	return row.toTenant(), nil
}

func (repo *tenants) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = repo.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	return Error.Wrap(err)
}
