// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Seasons exposes methods to manage seasons table in database.
type Seasons interface {
	// Insert is a method for inserting a season into the database.
	Insert(ctx context.Context, season *Season) (*Season, error)
	// Get is a method for querying a season by id.
	Get(ctx context.Context, id uuid.UUID) (*Season, error)
	// GetByLeaderboardID returns all seasons of a leaderboard.
	GetByLeaderboardID(ctx context.Context, leaderboardID uuid.UUID) ([]Season, error)
	// Update persists mutable season fields.
	Update(ctx context.Context, season *Season) error
	// Delete removes the season.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Season is a named time window of a leaderboard, used by external
// aggregation. Seasons have no sorted-set side effects; overlap is the
// caller's discipline.
type Season struct {
	ID            uuid.UUID         `json:"id"`
	LeaderboardID uuid.UUID         `json:"leaderboardId"`
	Name          string            `json:"name"`
	StartDate     time.Time         `json:"startDate"`
	EndDate       time.Time         `json:"endDate"`
	IsActive      bool              `json:"isActive"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// CreateSeason contains the input for creating a season.
type CreateSeason struct {
	LeaderboardID uuid.UUID         `json:"leaderboardId"`
	Name          string            `json:"name"`
	StartDate     time.Time         `json:"startDate"`
	EndDate       time.Time         `json:"endDate"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
