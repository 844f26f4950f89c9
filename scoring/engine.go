// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package scoring implements the hot-path engine: score updates against the
// sorted-set store and ranking queries.
package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/scoring/scoredb"
)

var (
	mon = monkit.Package()

	// Error is the default scoring errs class.
	Error = errs.Class("scoring")
)

// Limits on query and batch sizes.
const (
	MaxTopLimit      = 100
	MaxNeighborCount = 10
	MaxBatchSize     = 100
)

// Engine executes score updates and ranking queries for one tenant context
// at a time. It treats the sorted-set store as the source of truth and the
// event stream as a durability side channel.
type Engine struct {
	log       *zap.Logger
	sets      *scoredb.Client
	publisher events.Publisher
}

// NewEngine creates a scoring engine.
func NewEngine(log *zap.Logger, sets *scoredb.Client, publisher events.Publisher) *Engine {
	return &Engine{log: log, sets: sets, publisher: publisher}
}

// UpdateRequest is one score submission.
type UpdateRequest struct {
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	UserID        string    `json:"userId"`
	Score         float64   `json:"score"`
	Increment     bool      `json:"increment,omitempty"`
}

// Valid reports whether the request carries the required fields.
func (req UpdateRequest) Valid() error {
	if req.LeaderboardID == uuid.Nil {
		return apierr.ErrBadRequest.New("leaderboardId is required")
	}
	if req.UserID == "" {
		return apierr.ErrBadRequest.New("userId is required")
	}
	return nil
}

// UpdateResult reports the post-update state of the member.
type UpdateResult struct {
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	UserID        string    `json:"userId"`
	FinalScore    float64   `json:"finalScore"`
	Rank          int64     `json:"rank"`
}

// boardState is the resolved configuration of a leaderboard, with spec
// defaults applied when the metadata hash is absent.
type boardState struct {
	fp    scoredb.Fingerprint
	mode  console.UpdateMode
	order console.SortOrder
	ttl   time.Duration
}

func (e *Engine) resolveBoard(ctx context.Context, tc console.TenantContext, leaderboardID uuid.UUID) (boardState, error) {
	fp := scoredb.Fingerprint{
		TenantID:      tc.TenantID,
		ProjectID:     tc.ProjectID,
		LeaderboardID: leaderboardID,
	}

	state := boardState{fp: fp, mode: console.ModeReplace, order: console.SortDesc}

	meta, err := e.sets.GetMetadata(ctx, fp)
	if err != nil {
		return state, apierr.ErrUpstreamUnavailable.Wrap(err)
	}
	if meta == nil {
		return state, nil
	}

	if mode := console.UpdateMode(meta.UpdateMode); mode.Valid() {
		state.mode = mode
	}
	if order := console.SortOrder(meta.SortOrder); order.Valid() {
		state.order = order
	}
	if meta.TTLDays > 0 {
		state.ttl = time.Duration(meta.TTLDays) * 24 * time.Hour
	}
	return state, nil
}

// UpdateScore applies one submission under the leaderboard's update mode and
// returns the final score with its 1-based rank. The score.updated event
// carries the submitted score and increment flag, not the stored absolute.
func (e *Engine) UpdateScore(ctx context.Context, req UpdateRequest) (_ *UpdateResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := req.Valid(); err != nil {
		return nil, err
	}
	tc, err := console.GetTenant(ctx)
	if err != nil {
		return nil, err
	}

	board, err := e.resolveBoard(ctx, tc, req.LeaderboardID)
	if err != nil {
		return nil, err
	}

	mode := board.mode
	if req.Increment {
		mode = console.ModeIncrement
	}

	switch mode {
	case console.ModeIncrement:
		if _, err := e.sets.IncrBy(ctx, board.fp, req.UserID, req.Score); err != nil {
			return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
		}
	case console.ModeBest:
		// Read-then-write: not atomic across clients, converges once
		// concurrent writers commit.
		var current *float64
		score, ok, err := e.sets.Score(ctx, board.fp, req.UserID)
		if err != nil {
			return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
		}
		if ok {
			current = &score
		}
		if decision := Apply(mode, board.order, current, req.Score); decision.Write {
			if err := e.sets.Add(ctx, board.fp, req.UserID, decision.Value); err != nil {
				return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
			}
		}
	default:
		if err := e.sets.Add(ctx, board.fp, req.UserID, req.Score); err != nil {
			return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
		}
	}

	if board.ttl > 0 {
		if err := e.sets.Expire(ctx, board.fp, board.ttl); err != nil {
			return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
		}
	}

	result, err := e.readBack(ctx, board, req.UserID)
	if err != nil {
		return nil, err
	}

	e.publishUpdate(ctx, tc, req)
	return result, nil
}

func (e *Engine) readBack(ctx context.Context, board boardState, userID string) (*UpdateResult, error) {
	final, _, err := e.sets.Score(ctx, board.fp, userID)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}
	rank, _, err := e.sets.Rank(ctx, board.fp, userID, board.order == console.SortDesc)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}
	return &UpdateResult{
		LeaderboardID: board.fp.LeaderboardID,
		UserID:        userID,
		FinalScore:    final,
		Rank:          rank + 1,
	}, nil
}

func (e *Engine) publishUpdate(ctx context.Context, tc console.TenantContext, req UpdateRequest) {
	e.publisher.ScoreUpdated(ctx, events.ScoreUpdated{
		EventID:       uuid.New(),
		TenantID:      tc.TenantID,
		ProjectID:     tc.ProjectID,
		LeaderboardID: req.LeaderboardID,
		UserID:        req.UserID,
		Score:         req.Score,
		Increment:     req.Increment,
		Timestamp:     time.Now().UTC(),
	})
}

// BatchUpdateScore applies up to MaxBatchSize submissions. Metadata is
// fetched once per distinct leaderboard, best-mode entries pre-read their
// current scores, and all writes commit in one pipelined transaction with a
// single TTL re-arm per leaderboard. Events are emitted per entry.
func (e *Engine) BatchUpdateScore(ctx context.Context, reqs []UpdateRequest) (_ []UpdateResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(reqs) == 0 {
		return nil, apierr.ErrBadRequest.New("empty batch")
	}
	if len(reqs) > MaxBatchSize {
		return nil, apierr.ErrBadRequest.New("batch exceeds %d updates", MaxBatchSize)
	}
	tc, err := console.GetTenant(ctx)
	if err != nil {
		return nil, err
	}

	boards := make(map[uuid.UUID]boardState)
	for _, req := range reqs {
		if err := req.Valid(); err != nil {
			return nil, err
		}
		if _, ok := boards[req.LeaderboardID]; !ok {
			board, err := e.resolveBoard(ctx, tc, req.LeaderboardID)
			if err != nil {
				return nil, err
			}
			boards[req.LeaderboardID] = board
		}
	}

	// Pre-read current scores for entries that need best-mode decisions.
	currents := make(map[int]*float64)
	for i, req := range reqs {
		board := boards[req.LeaderboardID]
		if board.mode != console.ModeBest || req.Increment {
			continue
		}
		score, ok, err := e.sets.Score(ctx, board.fp, req.UserID)
		if err != nil {
			return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
		}
		if ok {
			currents[i] = &score
		}
	}

	pipe := e.sets.Redis().TxPipeline()
	for i, req := range reqs {
		board := boards[req.LeaderboardID]
		mode := board.mode
		if req.Increment {
			mode = console.ModeIncrement
		}
		decision := Apply(mode, board.order, currents[i], req.Score)
		if !decision.Write {
			continue
		}
		if decision.Increment {
			pipe.ZIncrBy(ctx, board.fp.Key(), decision.Value, req.UserID)
		} else {
			pipe.ZAdd(ctx, board.fp.Key(), redis.Z{Member: req.UserID, Score: decision.Value})
		}
	}
	for _, board := range boards {
		if board.ttl > 0 {
			pipe.Expire(ctx, board.fp.Key(), board.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}

	results := make([]UpdateResult, 0, len(reqs))
	for _, req := range reqs {
		board := boards[req.LeaderboardID]
		result, err := e.readBack(ctx, board, req.UserID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
		e.publishUpdate(ctx, tc, req)
	}
	return results, nil
}
