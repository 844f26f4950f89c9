// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/scoring/scoredb"
)

// Handlers project stream events into the durable stores.
type Handlers struct {
	log         *zap.Logger
	scoreEvents accounting.ScoreEvents
	sets        *scoredb.Client
}

// NewHandlers binds the projection targets.
func NewHandlers(log *zap.Logger, scoreEvents accounting.ScoreEvents, sets *scoredb.Client) *Handlers {
	return &Handlers{log: log, scoreEvents: scoreEvents, sets: sets}
}

// ScoreUpdated appends the submission to the relational event log. The
// insert keys on the event id, so redelivered messages are no-ops.
func (handlers *Handlers) ScoreUpdated(ctx context.Context, payload []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	var event events.ScoreUpdated
	if err := json.Unmarshal(payload, &event); err != nil {
		// A malformed payload never becomes valid; log and ack.
		handlers.log.Error("malformed score.updated payload", zap.Error(err))
		return nil
	}

	return handlers.scoreEvents.Insert(ctx, accounting.ScoreEvent{
		ID:            event.EventID,
		TenantID:      event.TenantID,
		ProjectID:     event.ProjectID,
		LeaderboardID: event.LeaderboardID,
		UserID:        event.UserID,
		Score:         event.Score,
		Increment:     event.Increment,
		CreatedAt:     event.Timestamp,
	})
}

// LeaderboardCreated upserts the metadata hash next to the score set. The
// same event is re-emitted on leaderboard updates, so the upsert doubles as
// the metadata sync path.
func (handlers *Handlers) LeaderboardCreated(ctx context.Context, payload []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	var event events.LeaderboardCreated
	if err := json.Unmarshal(payload, &event); err != nil {
		handlers.log.Error("malformed leaderboard.created payload", zap.Error(err))
		return nil
	}

	fp := scoredb.Fingerprint{
		TenantID:      event.TenantID,
		ProjectID:     event.ProjectID,
		LeaderboardID: event.LeaderboardID,
	}
	return handlers.sets.PutMetadata(ctx, fp, scoredb.Metadata{
		Name:       event.Name,
		ProjectID:  event.ProjectID.String(),
		TenantID:   event.TenantID.String(),
		CreatedAt:  event.Timestamp,
		TTLDays:    event.TTLDays,
		UpdateMode: event.UpdateMode,
		SortOrder:  event.SortOrder,
	})
}

// LeaderboardDeleted purges the score set and its metadata hash. Deleting an
// already-deleted key is a no-op, keeping redelivery safe.
func (handlers *Handlers) LeaderboardDeleted(ctx context.Context, payload []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	var event events.LeaderboardDeleted
	if err := json.Unmarshal(payload, &event); err != nil {
		handlers.log.Error("malformed leaderboard.deleted payload", zap.Error(err))
		return nil
	}

	fp := scoredb.Fingerprint{
		TenantID:      event.TenantID,
		ProjectID:     event.ProjectID,
		LeaderboardID: event.LeaderboardID,
	}
	return handlers.sets.Purge(ctx, fp)
}
