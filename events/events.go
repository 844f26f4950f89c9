// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package events defines the durable stream subjects and payloads exchanged
// between the hot path and the projection worker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StreamName is the JetStream stream holding all podium subjects.
const StreamName = "PODIUM"

// Subjects published to the stream.
const (
	SubjectScoreUpdated       = "score.updated"
	SubjectLeaderboardCreated = "leaderboard.created"
	SubjectLeaderboardDeleted = "leaderboard.deleted"
)

// StreamSubjects is the subject space bound to the stream.
var StreamSubjects = []string{"score.>", "leaderboard.>"}

// ScoreUpdated is emitted for every accepted score submission. Score is the
// submitted value, not the post-update absolute; Increment records whether
// increment mode was forced.
type ScoreUpdated struct {
	EventID       uuid.UUID `json:"eventId"`
	TenantID      uuid.UUID `json:"tenantId"`
	ProjectID     uuid.UUID `json:"projectId"`
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	UserID        string    `json:"userId"`
	Score         float64   `json:"score"`
	Increment     bool      `json:"increment"`
	Timestamp     time.Time `json:"timestamp"`
}

// LeaderboardCreated is emitted on creation and re-emitted on update so the
// worker keeps the metadata hash in sync.
type LeaderboardCreated struct {
	Type          string    `json:"type"`
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	ProjectID     uuid.UUID `json:"projectId"`
	TenantID      uuid.UUID `json:"tenantId"`
	Name          string    `json:"name"`
	SortOrder     string    `json:"sortOrder"`
	UpdateMode    string    `json:"updateMode"`
	TTLDays       int       `json:"ttlDays,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// LeaderboardDeleted instructs the worker to purge the sorted-set key and
// metadata hash.
type LeaderboardDeleted struct {
	Type          string    `json:"type"`
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	ProjectID     uuid.UUID `json:"projectId"`
	TenantID      uuid.UUID `json:"tenantId"`
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher fans events out to the durable stream. Implementations deliver
// at-least-once and never surface failures to the caller; the sorted set is
// the source of truth for real-time ranking, events drive durability.
type Publisher interface {
	// ScoreUpdated enqueues a score.updated event.
	ScoreUpdated(ctx context.Context, event ScoreUpdated)
	// LeaderboardCreated enqueues a leaderboard.created event.
	LeaderboardCreated(ctx context.Context, event LeaderboardCreated)
	// LeaderboardDeleted enqueues a leaderboard.deleted event.
	LeaderboardDeleted(ctx context.Context, event LeaderboardDeleted)
}
