// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Projects exposes methods to manage projects table in database.
type Projects interface {
	// Insert is a method for inserting a project into the database.
	Insert(ctx context.Context, project *Project) (*Project, error)
	// Get is a method for querying a project by id.
	Get(ctx context.Context, id uuid.UUID) (*Project, error)
	// GetByTenantID returns all projects owned by the tenant.
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) ([]Project, error)
	// Delete removes the project.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Project scopes leaderboards and API keys underneath a tenant.
type Project struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateProject contains the input for creating a project.
type CreateProject struct {
	TenantID uuid.UUID `json:"tenantId"`
	Name     string    `json:"name"`
}
