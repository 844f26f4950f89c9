// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package scoring

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
	"github.com/podiumhq/podium/console/consoletest"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/scoring/scoredb"
)

type stubPublisher struct {
	created []events.LeaderboardCreated
}

func (p *stubPublisher) ScoreUpdated(ctx context.Context, event events.ScoreUpdated) {}
func (p *stubPublisher) LeaderboardCreated(ctx context.Context, event events.LeaderboardCreated) {
	p.created = append(p.created, event)
}
func (p *stubPublisher) LeaderboardDeleted(ctx context.Context, event events.LeaderboardDeleted) {}

func TestResetterTick(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sets := scoredb.NewClientFrom(zaptest.NewLogger(t), client)

	store := consoletest.NewDB()
	tenant, err := store.Tenants().Insert(ctx, &console.Tenant{ID: uuid.New(), Name: "t", Email: "t@example.com"})
	require.NoError(t, err)
	project, err := store.Projects().Insert(ctx, &console.Project{ID: uuid.New(), TenantID: tenant.ID, Name: "p"})
	require.NoError(t, err)
	board, err := store.Leaderboards().Insert(ctx, &console.Leaderboard{
		ID:            uuid.New(),
		ProjectID:     project.ID,
		Name:          "hourly",
		SortOrder:     console.SortDesc,
		UpdateMode:    console.ModeReplace,
		ResetSchedule: "0 * * * *",
		IsActive:      true,
	})
	require.NoError(t, err)

	fp := scoredb.Fingerprint{TenantID: tenant.ID, ProjectID: project.ID, LeaderboardID: board.ID}
	require.NoError(t, sets.Add(ctx, fp, "alice", 100))

	publisher := &stubPublisher{}
	resetter := NewResetter(zaptest.NewLogger(t), store, sets, publisher, ResetterConfig{Interval: time.Minute})

	// First sighting only anchors the schedule; nothing fires.
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, resetter.tick(ctx, now))
	assert.True(t, mr.Exists(fp.Key()))
	assert.Empty(t, publisher.created)

	// Before the next slot nothing fires either.
	require.NoError(t, resetter.tick(ctx, now.Add(10*time.Minute)))
	assert.True(t, mr.Exists(fp.Key()))

	// Crossing the top of the hour purges the set and re-announces the
	// board so the worker re-arms the metadata hash.
	require.NoError(t, resetter.tick(ctx, now.Add(31*time.Minute)))
	assert.False(t, mr.Exists(fp.Key()))
	require.Len(t, publisher.created, 1)
	assert.Equal(t, board.ID, publisher.created[0].LeaderboardID)
	assert.Equal(t, tenant.ID, publisher.created[0].TenantID)

	// Scores accumulate again in the fresh window without another reset
	// until the following slot.
	require.NoError(t, sets.Add(ctx, fp, "bob", 50))
	require.NoError(t, resetter.tick(ctx, now.Add(40*time.Minute)))
	assert.True(t, mr.Exists(fp.Key()))
	assert.Len(t, publisher.created, 1)
}

func TestResetterSkipsUnscheduled(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sets := scoredb.NewClientFrom(zaptest.NewLogger(t), client)

	store := consoletest.NewDB()
	tenant, err := store.Tenants().Insert(ctx, &console.Tenant{ID: uuid.New(), Name: "t", Email: "u@example.com"})
	require.NoError(t, err)
	project, err := store.Projects().Insert(ctx, &console.Project{ID: uuid.New(), TenantID: tenant.ID, Name: "p"})
	require.NoError(t, err)
	board, err := store.Leaderboards().Insert(ctx, &console.Leaderboard{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Name:       "alltime",
		SortOrder:  console.SortDesc,
		UpdateMode: console.ModeReplace,
		IsActive:   true,
	})
	require.NoError(t, err)

	fp := scoredb.Fingerprint{TenantID: tenant.ID, ProjectID: project.ID, LeaderboardID: board.ID}
	require.NoError(t, sets.Add(ctx, fp, "alice", 100))

	resetter := NewResetter(zaptest.NewLogger(t), store, sets, &stubPublisher{}, ResetterConfig{})

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, resetter.tick(ctx, now))
	require.NoError(t, resetter.tick(ctx, now.Add(24*time.Hour)))
	assert.True(t, mr.Exists(fp.Key()), "boards without a schedule are never reset")
}
