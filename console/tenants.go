// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenants exposes methods to manage tenants table in database.
type Tenants interface {
	// Insert is a method for inserting a tenant into the database.
	Insert(ctx context.Context, tenant *Tenant) (*Tenant, error)
	// Get is a method for querying a tenant by id.
	Get(ctx context.Context, id uuid.UUID) (*Tenant, error)
	// GetByEmail is a method for querying a tenant by email.
	GetByEmail(ctx context.Context, email string) (*Tenant, error)
	// Delete removes the tenant and cascades to owned entities.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Tenant is the billing root of the data model. A tenant owns projects,
// and through them leaderboards, keys and usage.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateTenant contains the input for creating a tenant.
type CreateTenant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
