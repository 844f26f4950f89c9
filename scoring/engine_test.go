// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package scoring_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/scoring"
	"github.com/podiumhq/podium/scoring/scoredb"
)

// recordingPublisher captures emitted events for assertions.
type recordingPublisher struct {
	scores  []events.ScoreUpdated
	created []events.LeaderboardCreated
	deleted []events.LeaderboardDeleted
}

func (p *recordingPublisher) ScoreUpdated(ctx context.Context, event events.ScoreUpdated) {
	p.scores = append(p.scores, event)
}

func (p *recordingPublisher) LeaderboardCreated(ctx context.Context, event events.LeaderboardCreated) {
	p.created = append(p.created, event)
}

func (p *recordingPublisher) LeaderboardDeleted(ctx context.Context, event events.LeaderboardDeleted) {
	p.deleted = append(p.deleted, event)
}

type engineTest struct {
	mr        *miniredis.Miniredis
	sets      *scoredb.Client
	engine    *scoring.Engine
	publisher *recordingPublisher
	tc        console.TenantContext
	ctx       context.Context
}

func newEngineTest(t *testing.T) *engineTest {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sets := scoredb.NewClientFrom(zaptest.NewLogger(t), client)
	publisher := &recordingPublisher{}

	tc := console.TenantContext{
		TenantID:  uuid.New(),
		ProjectID: uuid.New(),
		PlanType:  console.PlanFree,
	}

	return &engineTest{
		mr:        mr,
		sets:      sets,
		engine:    scoring.NewEngine(zaptest.NewLogger(t), sets, publisher),
		publisher: publisher,
		tc:        tc,
		ctx:       console.WithTenant(context.Background(), tc),
	}
}

func (et *engineTest) fingerprint(boardID uuid.UUID) scoredb.Fingerprint {
	return scoredb.Fingerprint{
		TenantID:      et.tc.TenantID,
		ProjectID:     et.tc.ProjectID,
		LeaderboardID: boardID,
	}
}

func (et *engineTest) putMetadata(t *testing.T, boardID uuid.UUID, mode console.UpdateMode, order console.SortOrder, ttlDays int) {
	err := et.sets.PutMetadata(et.ctx, et.fingerprint(boardID), scoredb.Metadata{
		Name:       "board",
		ProjectID:  et.tc.ProjectID.String(),
		TenantID:   et.tc.TenantID.String(),
		CreatedAt:  time.Now().UTC(),
		TTLDays:    ttlDays,
		UpdateMode: string(mode),
		SortOrder:  string(order),
	})
	require.NoError(t, err)
}

func TestUpdateScore_ReplaceDefault(t *testing.T) {
	et := newEngineTest(t)
	boardID := uuid.New()

	// No metadata hash: defaults are replace mode, descending order.
	result, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "alice", Score: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(100), result.FinalScore)
	assert.Equal(t, int64(1), result.Rank)

	result, err = et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "alice", Score: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(50), result.FinalScore, "replace overwrites even with a lower score")

	require.Len(t, et.publisher.scores, 2)
	assert.Equal(t, float64(50), et.publisher.scores[1].Score)
	assert.Equal(t, et.tc.TenantID, et.publisher.scores[1].TenantID)
	assert.NotEqual(t, uuid.Nil, et.publisher.scores[1].EventID)
}

func TestUpdateScore_IncrementFlagOverridesMode(t *testing.T) {
	et := newEngineTest(t)
	boardID := uuid.New()

	_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "alice", Score: 100,
	})
	require.NoError(t, err)

	result, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "alice", Score: 25, Increment: true,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(125), result.FinalScore)

	// Increment on an absent member creates it at the delta.
	result, err = et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "bob", Score: 10, Increment: true,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(10), result.FinalScore)
}

func TestUpdateScore_BestMode(t *testing.T) {
	et := newEngineTest(t)

	t.Run("descending keeps the higher score", func(t *testing.T) {
		boardID := uuid.New()
		et.putMetadata(t, boardID, console.ModeBest, console.SortDesc, 0)

		_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
			LeaderboardID: boardID, UserID: "alice", Score: 100,
		})
		require.NoError(t, err)

		result, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
			LeaderboardID: boardID, UserID: "alice", Score: 50,
		})
		require.NoError(t, err)
		assert.Equal(t, float64(100), result.FinalScore)

		result, err = et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
			LeaderboardID: boardID, UserID: "alice", Score: 150,
		})
		require.NoError(t, err)
		assert.Equal(t, float64(150), result.FinalScore)
	})

	t.Run("ascending keeps the lower score", func(t *testing.T) {
		boardID := uuid.New()
		et.putMetadata(t, boardID, console.ModeBest, console.SortAsc, 0)

		_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
			LeaderboardID: boardID, UserID: "runner", Score: 72.5,
		})
		require.NoError(t, err)

		result, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
			LeaderboardID: boardID, UserID: "runner", Score: 80,
		})
		require.NoError(t, err)
		assert.Equal(t, float64(72.5), result.FinalScore)
	})

	t.Run("event carries the submitted score even without a write", func(t *testing.T) {
		boardID := uuid.New()
		et.putMetadata(t, boardID, console.ModeBest, console.SortDesc, 0)

		_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
			LeaderboardID: boardID, UserID: "alice", Score: 100,
		})
		require.NoError(t, err)

		before := len(et.publisher.scores)
		_, err = et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
			LeaderboardID: boardID, UserID: "alice", Score: 10,
		})
		require.NoError(t, err)
		require.Len(t, et.publisher.scores, before+1)
		assert.Equal(t, float64(10), et.publisher.scores[before].Score)
	})
}

func TestUpdateScore_TTLRearm(t *testing.T) {
	et := newEngineTest(t)
	boardID := uuid.New()
	et.putMetadata(t, boardID, console.ModeReplace, console.SortDesc, 7)

	_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "alice", Score: 1,
	})
	require.NoError(t, err)

	key := et.fingerprint(boardID).Key()
	assert.Equal(t, 7*24*time.Hour, et.mr.TTL(key))

	// Let time pass, then write again: the TTL re-arms to the full window.
	et.mr.FastForward(24 * time.Hour)
	_, err = et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "bob", Score: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, et.mr.TTL(key))

	// The metadata hash never expires.
	assert.Equal(t, time.Duration(0), et.mr.TTL(et.fingerprint(boardID).MetaKey()))
}

func TestUpdateScore_Validation(t *testing.T) {
	et := newEngineTest(t)

	_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{UserID: "alice", Score: 1})
	assert.Error(t, err)

	_, err = et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{LeaderboardID: uuid.New(), Score: 1})
	assert.Error(t, err)

	// Missing tenant context.
	_, err = et.engine.UpdateScore(context.Background(), scoring.UpdateRequest{
		LeaderboardID: uuid.New(), UserID: "alice", Score: 1,
	})
	assert.Error(t, err)
}

func TestBatchUpdateScore(t *testing.T) {
	et := newEngineTest(t)
	boardID := uuid.New()

	results, err := et.engine.BatchUpdateScore(et.ctx, []scoring.UpdateRequest{
		{LeaderboardID: boardID, UserID: "alice", Score: 100},
		{LeaderboardID: boardID, UserID: "bob", Score: 300},
		{LeaderboardID: boardID, UserID: "carol", Score: 200},
		{LeaderboardID: boardID, UserID: "alice", Score: 50, Increment: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Final state after the whole batch: bob 300, carol 200, alice 150.
	byUser := make(map[string]scoring.UpdateResult)
	for _, result := range results {
		byUser[result.UserID] = result
	}
	assert.Equal(t, float64(150), byUser["alice"].FinalScore)
	assert.Equal(t, int64(3), byUser["alice"].Rank)
	assert.Equal(t, int64(1), byUser["bob"].Rank)
	assert.Equal(t, int64(2), byUser["carol"].Rank)

	assert.Len(t, et.publisher.scores, 4, "one event per entry")
}

func TestBatchUpdateScore_BestModeAndLimits(t *testing.T) {
	et := newEngineTest(t)
	boardID := uuid.New()
	et.putMetadata(t, boardID, console.ModeBest, console.SortDesc, 0)

	_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "alice", Score: 100,
	})
	require.NoError(t, err)

	results, err := et.engine.BatchUpdateScore(et.ctx, []scoring.UpdateRequest{
		{LeaderboardID: boardID, UserID: "alice", Score: 10},
		{LeaderboardID: boardID, UserID: "alice", Score: 500},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, float64(500), results[1].FinalScore)

	_, err = et.engine.BatchUpdateScore(et.ctx, nil)
	assert.Error(t, err, "empty batch rejected")

	tooMany := make([]scoring.UpdateRequest, scoring.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = scoring.UpdateRequest{LeaderboardID: boardID, UserID: "u", Score: 1}
	}
	_, err = et.engine.BatchUpdateScore(et.ctx, tooMany)
	assert.Error(t, err, "oversized batch rejected")
}

func TestTenantIsolation(t *testing.T) {
	et := newEngineTest(t)
	boardID := uuid.New()

	_, err := et.engine.UpdateScore(et.ctx, scoring.UpdateRequest{
		LeaderboardID: boardID, UserID: "alice", Score: 100,
	})
	require.NoError(t, err)

	// Same leaderboard id under a different tenant resolves to another key.
	other := console.TenantContext{
		TenantID:  uuid.New(),
		ProjectID: et.tc.ProjectID,
		PlanType:  console.PlanFree,
	}
	otherCtx := console.WithTenant(context.Background(), other)

	top, err := et.engine.Top(otherCtx, boardID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, top.Entries)
	assert.Zero(t, top.Total)
}
