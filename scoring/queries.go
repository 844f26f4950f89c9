// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package scoring

import (
	"context"

	"github.com/google/uuid"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
)

// RankedEntry is one leaderboard row with its 1-based rank.
type RankedEntry struct {
	Rank   int64   `json:"rank"`
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
}

// TopResult is a page of the leaderboard ordered by its sort order.
type TopResult struct {
	Entries []RankedEntry `json:"entries"`
	Total   int64         `json:"total"`
}

// Neighbors are the entries ranked strictly better and strictly worse than
// the looked-up member.
type Neighbors struct {
	Above []RankedEntry `json:"above"`
	Below []RankedEntry `json:"below"`
}

// RankResult reports a member's rank and score. Rank and Score are null for
// members absent from the leaderboard.
type RankResult struct {
	UserID    string     `json:"userId"`
	Rank      *int64     `json:"rank"`
	Score     *float64   `json:"score"`
	Neighbors *Neighbors `json:"neighbors,omitempty"`
}

// Top returns up to limit entries starting at offset, ordered by the
// leaderboard's sort order. Ranks are 1-based and continuous from offset+1.
func (e *Engine) Top(ctx context.Context, leaderboardID uuid.UUID, limit, offset int64) (_ *TopResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if limit <= 0 {
		limit = 10
	}
	if limit > MaxTopLimit {
		return nil, apierr.ErrBadRequest.New("limit exceeds %d", MaxTopLimit)
	}
	if offset < 0 {
		return nil, apierr.ErrBadRequest.New("offset must not be negative")
	}
	tc, err := console.GetTenant(ctx)
	if err != nil {
		return nil, err
	}
	board, err := e.resolveBoard(ctx, tc, leaderboardID)
	if err != nil {
		return nil, err
	}

	desc := board.order == console.SortDesc
	raw, err := e.sets.Range(ctx, board.fp, offset, offset+limit-1, desc)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}
	total, err := e.sets.Card(ctx, board.fp)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}

	entries := make([]RankedEntry, 0, len(raw))
	for i, entry := range raw {
		entries = append(entries, RankedEntry{
			Rank:   offset + int64(i) + 1,
			UserID: entry.Member,
			Score:  entry.Score,
		})
	}
	return &TopResult{Entries: entries, Total: total}, nil
}

// RankOptions tunes a RankOf lookup.
type RankOptions struct {
	WithNeighbors bool
	NeighborCount int64
}

// RankOf returns the member's 1-based rank and score, optionally with the
// neighboring entries. Missing members yield null rank and score, never an
// error.
func (e *Engine) RankOf(ctx context.Context, leaderboardID uuid.UUID, userID string, opts RankOptions) (_ *RankResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if userID == "" {
		return nil, apierr.ErrBadRequest.New("userId is required")
	}
	if opts.NeighborCount < 0 {
		return nil, apierr.ErrBadRequest.New("neighborCount must not be negative")
	}
	if opts.NeighborCount == 0 {
		opts.NeighborCount = 5
	}
	if opts.NeighborCount > MaxNeighborCount {
		return nil, apierr.ErrBadRequest.New("neighborCount exceeds %d", MaxNeighborCount)
	}
	tc, err := console.GetTenant(ctx)
	if err != nil {
		return nil, err
	}
	board, err := e.resolveBoard(ctx, tc, leaderboardID)
	if err != nil {
		return nil, err
	}

	desc := board.order == console.SortDesc
	index, ok, err := e.sets.Rank(ctx, board.fp, userID, desc)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}
	if !ok {
		return &RankResult{UserID: userID}, nil
	}
	score, _, err := e.sets.Score(ctx, board.fp, userID)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}

	rank := index + 1
	result := &RankResult{UserID: userID, Rank: &rank, Score: &score}
	if !opts.WithNeighbors {
		return result, nil
	}

	neighbors := &Neighbors{Above: []RankedEntry{}, Below: []RankedEntry{}}
	if index > 0 {
		start := index - opts.NeighborCount
		if start < 0 {
			start = 0
		}
		above, err := e.sets.Range(ctx, board.fp, start, index-1, desc)
		if err != nil {
			return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
		}
		for i, entry := range above {
			neighbors.Above = append(neighbors.Above, RankedEntry{
				Rank:   start + int64(i) + 1,
				UserID: entry.Member,
				Score:  entry.Score,
			})
		}
	}
	below, err := e.sets.Range(ctx, board.fp, index+1, index+opts.NeighborCount, desc)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}
	for i, entry := range below {
		neighbors.Below = append(neighbors.Below, RankedEntry{
			Rank:   index + int64(i) + 2,
			UserID: entry.Member,
			Score:  entry.Score,
		})
	}
	result.Neighbors = neighbors
	return result, nil
}
