// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/scoring/scoredb"
)

// ResetterConfig configures the leaderboard reset chore.
type ResetterConfig struct {
	// Interval is how often schedules are evaluated.
	Interval time.Duration
	// Enabled turns the chore on.
	Enabled bool
}

// Resetter periodically clears the score sets of leaderboards whose reset
// schedule has fired. Metadata is re-emitted so the worker re-arms the hash
// after the purge.
type Resetter struct {
	log       *zap.Logger
	db        console.DB
	sets      *scoredb.Client
	publisher events.Publisher
	interval  time.Duration

	parser  cron.Parser
	lastRun map[uuid.UUID]time.Time
}

// NewResetter creates the reset chore.
func NewResetter(log *zap.Logger, db console.DB, sets *scoredb.Client, publisher events.Publisher, config ResetterConfig) *Resetter {
	interval := config.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Resetter{
		log:       log,
		db:        db,
		sets:      sets,
		publisher: publisher,
		interval:  interval,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lastRun:   make(map[uuid.UUID]time.Time),
	}
}

// Run evaluates schedules until the context is canceled.
func (r *Resetter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.tick(ctx, time.Now().UTC()); err != nil {
				r.log.Error("reset tick failed", zap.Error(err))
			}
		}
	}
}

func (r *Resetter) tick(ctx context.Context, now time.Time) (err error) {
	defer mon.Task()(&ctx)(&err)

	boards, err := r.db.Leaderboards().ListScheduled(ctx)
	if err != nil {
		return Error.Wrap(err)
	}

	for _, board := range boards {
		schedule, err := r.parser.Parse(board.ResetSchedule)
		if err != nil {
			r.log.Warn("unparsable reset schedule",
				zap.Stringer("leaderboardID", board.ID),
				zap.String("schedule", board.ResetSchedule))
			continue
		}

		last, ok := r.lastRun[board.ID]
		if !ok {
			// First sighting; anchor to now and fire on the next slot.
			r.lastRun[board.ID] = now
			continue
		}
		if schedule.Next(last).After(now) {
			continue
		}
		r.lastRun[board.ID] = now

		if err := r.reset(ctx, board); err != nil {
			r.log.Error("leaderboard reset failed",
				zap.Stringer("leaderboardID", board.ID), zap.Error(err))
		}
	}
	return nil
}

func (r *Resetter) reset(ctx context.Context, board console.Leaderboard) error {
	project, err := r.db.Projects().Get(ctx, board.ProjectID)
	if err != nil {
		return Error.Wrap(err)
	}

	fp := scoredb.Fingerprint{
		TenantID:      project.TenantID,
		ProjectID:     board.ProjectID,
		LeaderboardID: board.ID,
	}
	if err := r.sets.Purge(ctx, fp); err != nil {
		return Error.Wrap(err)
	}

	r.log.Info("leaderboard reset",
		zap.Stringer("leaderboardID", board.ID),
		zap.String("schedule", board.ResetSchedule))

	r.publisher.LeaderboardCreated(ctx, events.LeaderboardCreated{
		Type:          events.SubjectLeaderboardCreated,
		LeaderboardID: board.ID,
		ProjectID:     board.ProjectID,
		TenantID:      project.TenantID,
		Name:          board.Name,
		SortOrder:     string(board.SortOrder),
		UpdateMode:    string(board.UpdateMode),
		TTLDays:       board.TTLDays,
		Timestamp:     time.Now().UTC(),
	})
	return nil
}
