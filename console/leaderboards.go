// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SortOrder decides whether higher or lower scores rank first.
type SortOrder string

// Known sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether the sort order is recognized.
func (o SortOrder) Valid() bool { return o == SortAsc || o == SortDesc }

// UpdateMode governs how an incoming score combines with the stored score.
type UpdateMode string

// Known update modes.
const (
	ModeReplace   UpdateMode = "replace"
	ModeIncrement UpdateMode = "increment"
	ModeBest      UpdateMode = "best"
)

// Valid reports whether the update mode is recognized.
func (m UpdateMode) Valid() bool {
	switch m {
	case ModeReplace, ModeIncrement, ModeBest:
		return true
	}
	return false
}

// Leaderboards exposes methods to manage leaderboards table in database.
type Leaderboards interface {
	// Insert is a method for inserting a leaderboard into the database.
	Insert(ctx context.Context, board *Leaderboard) (*Leaderboard, error)
	// Get is a method for querying a leaderboard by id.
	Get(ctx context.Context, id uuid.UUID) (*Leaderboard, error)
	// GetByProjectID returns all leaderboards of a project.
	GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]Leaderboard, error)
	// Update persists mutable leaderboard fields.
	Update(ctx context.Context, board *Leaderboard) error
	// Delete removes the leaderboard and its seasons.
	Delete(ctx context.Context, id uuid.UUID) error
	// CountByTenant counts leaderboards across the tenant's projects.
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// ListScheduled returns active leaderboards that carry a reset schedule.
	ListScheduled(ctx context.Context) ([]Leaderboard, error)
}

// Leaderboard is the control-plane record of a leaderboard. The score data
// itself lives in the sorted-set store under the key derived from
// (tenant, project, leaderboard).
type Leaderboard struct {
	ID            uuid.UUID         `json:"id"`
	ProjectID     uuid.UUID         `json:"projectId"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	SortOrder     SortOrder         `json:"sortOrder"`
	UpdateMode    UpdateMode        `json:"updateMode"`
	ResetSchedule string            `json:"resetSchedule,omitempty"`
	TTLDays       int               `json:"ttlDays,omitempty"`
	IsActive      bool              `json:"isActive"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// CreateLeaderboard contains the input for creating a leaderboard.
type CreateLeaderboard struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	SortOrder     SortOrder         `json:"sortOrder,omitempty"`
	UpdateMode    UpdateMode        `json:"updateMode,omitempty"`
	ResetSchedule string            `json:"resetSchedule,omitempty"`
	TTLDays       int               `json:"ttlDays,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// UpdateLeaderboard carries the mutable fields of a leaderboard; nil fields
// are left unchanged.
type UpdateLeaderboard struct {
	Name          *string            `json:"name,omitempty"`
	Description   *string            `json:"description,omitempty"`
	SortOrder     *SortOrder         `json:"sortOrder,omitempty"`
	UpdateMode    *UpdateMode        `json:"updateMode,omitempty"`
	ResetSchedule *string            `json:"resetSchedule,omitempty"`
	TTLDays       *int               `json:"ttlDays,omitempty"`
	IsActive      *bool              `json:"isActive,omitempty"`
	Metadata      *map[string]string `json:"metadata,omitempty"`
}
