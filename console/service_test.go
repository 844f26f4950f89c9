// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/console/consoletest"
	"github.com/podiumhq/podium/events"
)

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

type recordingAuthCache struct {
	invalidated []string
}

func (c *recordingAuthCache) Invalidate(ctx context.Context, fingerprint string) error {
	c.invalidated = append(c.invalidated, fingerprint)
	return nil
}

type serviceTest struct {
	service   *console.Service
	store     *consoletest.DB
	publisher *recordingPublisher
	authCache *recordingAuthCache
}

func newServiceTest(t *testing.T) *serviceTest {
	store := consoletest.NewDB()
	publisher := &recordingPublisher{}
	authCache := &recordingAuthCache{}

	service, err := console.NewService(zaptest.NewLogger(t), store, publisher, authCache, console.TestKeyHashCost)
	require.NoError(t, err)

	return &serviceTest{
		service:   service,
		store:     store,
		publisher: publisher,
		authCache: authCache,
	}
}

func (st *serviceTest) createTenantAndProject(t *testing.T, ctx context.Context) (*console.Tenant, *console.Project) {
	tenant, err := st.service.CreateTenant(ctx, console.CreateTenant{
		Name:  "Acme Games",
		Email: "dev@acme.example",
	})
	require.NoError(t, err)

	project, err := st.service.CreateProject(ctx, console.CreateProject{
		TenantID: tenant.ID,
		Name:     "space-race",
	})
	require.NoError(t, err)
	return tenant, project
}

func tenantCtx(tenant *console.Tenant, project *console.Project, plan console.PlanType) context.Context {
	return console.WithTenant(context.Background(), console.TenantContext{
		TenantID:  tenant.ID,
		ProjectID: project.ID,
		PlanType:  plan,
	})
}

func TestCreateTenant(t *testing.T) {
	ctx := context.Background()
	st := newServiceTest(t)

	tenant, err := st.service.CreateTenant(ctx, console.CreateTenant{
		Name:  "Acme Games",
		Email: "  Dev@Acme.Example ",
	})
	require.NoError(t, err)
	assert.Equal(t, "dev@acme.example", tenant.Email, "email is normalized")

	_, err = st.service.CreateTenant(ctx, console.CreateTenant{
		Name:  "Other",
		Email: "dev@acme.example",
	})
	assert.True(t, apierr.ErrConflict.Has(err), "duplicate email conflicts")

	_, err = st.service.CreateTenant(ctx, console.CreateTenant{Name: "No Email"})
	assert.True(t, apierr.ErrBadRequest.Has(err))
}

func TestAPIKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newServiceTest(t)
	tenant, project := st.createTenantAndProject(t, ctx)

	created, err := st.service.CreateAPIKey(ctx, console.CreateAPIKey{
		ProjectID: project.ID,
		Name:      "ci",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Plaintext, console.KeyPrefix))
	assert.NotEmpty(t, created.Key.Fingerprint)

	t.Run("validate resolves the tenant context", func(t *testing.T) {
		validation, err := st.service.ValidateAPIKey(ctx, created.Plaintext)
		require.NoError(t, err)
		assert.True(t, validation.Valid)
		assert.Equal(t, tenant.ID, validation.TenantID)
		assert.Equal(t, project.ID, validation.ProjectID)
		assert.Equal(t, console.PlanFree, validation.PlanType, "no subscription defaults to free")

		key, err := st.store.APIKeys().Get(ctx, created.Key.ID)
		require.NoError(t, err)
		assert.NotNil(t, key.LastUsedAt)
	})

	t.Run("active subscription upgrades the plan", func(t *testing.T) {
		_, err := st.service.CreateSubscription(ctx, console.CreateSubscription{
			TenantID: tenant.ID,
			PlanType: console.PlanPro,
		})
		require.NoError(t, err)

		validation, err := st.service.ValidateAPIKey(ctx, created.Plaintext)
		require.NoError(t, err)
		assert.Equal(t, console.PlanPro, validation.PlanType)
	})

	t.Run("malformed and unknown keys are indistinguishable", func(t *testing.T) {
		_, err := st.service.ValidateAPIKey(ctx, "not-a-key")
		assert.True(t, apierr.ErrUnauthenticated.Has(err))

		unknown, err := console.GeneratePlaintextKey()
		require.NoError(t, err)
		_, err = st.service.ValidateAPIKey(ctx, unknown)
		assert.True(t, apierr.ErrUnauthenticated.Has(err))
	})

	t.Run("revoke rejects the key and drops the cache entry", func(t *testing.T) {
		require.NoError(t, st.service.RevokeAPIKey(ctx, created.Key.ID))

		_, err := st.service.ValidateAPIKey(ctx, created.Plaintext)
		assert.True(t, apierr.ErrUnauthenticated.Has(err))
		assert.Contains(t, st.authCache.invalidated, created.Key.Fingerprint)
	})
}

func TestRotateAPIKey(t *testing.T) {
	ctx := context.Background()
	st := newServiceTest(t)
	_, project := st.createTenantAndProject(t, ctx)

	created, err := st.service.CreateAPIKey(ctx, console.CreateAPIKey{
		ProjectID: project.ID,
		Name:      "backend",
	})
	require.NoError(t, err)

	rotated, err := st.service.RotateAPIKey(ctx, created.Key.ID)
	require.NoError(t, err)
	assert.Equal(t, "backend", rotated.Key.Name)
	assert.Equal(t, project.ID, rotated.Key.ProjectID)
	assert.NotEqual(t, created.Plaintext, rotated.Plaintext)

	_, err = st.service.ValidateAPIKey(ctx, created.Plaintext)
	assert.True(t, apierr.ErrUnauthenticated.Has(err), "old key stops working")

	validation, err := st.service.ValidateAPIKey(ctx, rotated.Plaintext)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	st := newServiceTest(t)
	tenant, _ := st.createTenantAndProject(t, ctx)

	_, err := st.service.CreateSubscription(ctx, console.CreateSubscription{
		TenantID: tenant.ID,
		PlanType: "platinum",
	})
	assert.True(t, apierr.ErrBadRequest.Has(err), "unknown plan rejected")

	sub, err := st.service.CreateSubscription(ctx, console.CreateSubscription{
		TenantID: tenant.ID,
		PlanType: console.PlanPro,
	})
	require.NoError(t, err)
	assert.Equal(t, console.SubscriptionActive, sub.Status)
	assert.True(t, sub.PeriodEnd.After(sub.PeriodStart))

	_, err = st.service.CreateSubscription(ctx, console.CreateSubscription{
		TenantID: tenant.ID,
		PlanType: console.PlanEnterprise,
	})
	assert.True(t, apierr.ErrConflict.Has(err), "one active subscription per tenant")

	t.Run("cancel at period end", func(t *testing.T) {
		cancelled, err := st.service.CancelSubscription(ctx, sub.ID, false)
		require.NoError(t, err)
		assert.True(t, cancelled.CancelAtPeriodEnd)
		assert.Equal(t, console.SubscriptionActive, cancelled.Status)
	})

	t.Run("cancel immediately", func(t *testing.T) {
		cancelled, err := st.service.CancelSubscription(ctx, sub.ID, true)
		require.NoError(t, err)
		assert.Equal(t, console.SubscriptionCancelled, cancelled.Status)

		_, err = st.service.GetActiveSubscription(ctx, tenant.ID)
		assert.True(t, apierr.ErrNotFound.Has(err))
	})
}

func TestCreateLeaderboard(t *testing.T) {
	st := newServiceTest(t)
	tenant, project := st.createTenantAndProject(t, context.Background())
	ctx := tenantCtx(tenant, project, console.PlanFree)

	board, err := st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{
		Name: "weekly-kills",
	})
	require.NoError(t, err)
	assert.Equal(t, console.SortDesc, board.SortOrder, "defaults to descending")
	assert.Equal(t, console.ModeReplace, board.UpdateMode, "defaults to replace")
	assert.True(t, board.IsActive)

	require.Len(t, st.publisher.created, 1)
	event := st.publisher.created[0]
	assert.Equal(t, board.ID, event.LeaderboardID)
	assert.Equal(t, tenant.ID, event.TenantID)
	assert.Equal(t, "desc", event.SortOrder)

	t.Run("invalid inputs", func(t *testing.T) {
		_, err := st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{})
		assert.True(t, apierr.ErrBadRequest.Has(err), "name required")

		_, err = st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{
			Name: "b", SortOrder: "sideways",
		})
		assert.True(t, apierr.ErrBadRequest.Has(err))

		_, err = st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{
			Name: "b", UpdateMode: "merge",
		})
		assert.True(t, apierr.ErrBadRequest.Has(err))

		_, err = st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{
			Name: "b", TTLDays: -1,
		})
		assert.True(t, apierr.ErrBadRequest.Has(err))

		_, err = st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{
			Name: "b", ResetSchedule: "not cron",
		})
		assert.True(t, apierr.ErrBadRequest.Has(err))
	})

	t.Run("duplicate name in project conflicts", func(t *testing.T) {
		_, err := st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{
			Name: "weekly-kills",
		})
		assert.True(t, apierr.ErrConflict.Has(err))
	})

	t.Run("valid cron schedule accepted", func(t *testing.T) {
		board, err := st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{
			Name:          "monthly",
			ResetSchedule: "0 0 1 * *",
		})
		require.NoError(t, err)
		assert.Equal(t, "0 0 1 * *", board.ResetSchedule)
	})
}

func TestLeaderboardTenantScoping(t *testing.T) {
	st := newServiceTest(t)
	tenant, project := st.createTenantAndProject(t, context.Background())
	ctx := tenantCtx(tenant, project, console.PlanFree)

	board, err := st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{Name: "scores"})
	require.NoError(t, err)

	// A different project in the same tenant must not see the board.
	other, err := st.service.CreateProject(context.Background(), console.CreateProject{
		TenantID: tenant.ID,
		Name:     "other-game",
	})
	require.NoError(t, err)

	_, err = st.service.GetLeaderboard(tenantCtx(tenant, other, console.PlanFree), board.ID)
	assert.True(t, apierr.ErrNotFound.Has(err), "cross-project access reads as absence")

	_, err = st.service.GetLeaderboard(ctx, board.ID)
	assert.NoError(t, err)
}

func TestUpdateAndDeleteLeaderboard(t *testing.T) {
	st := newServiceTest(t)
	tenant, project := st.createTenantAndProject(t, context.Background())
	ctx := tenantCtx(tenant, project, console.PlanFree)

	board, err := st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{Name: "scores"})
	require.NoError(t, err)

	mode := console.ModeBest
	ttl := 14
	updated, err := st.service.UpdateLeaderboard(ctx, board.ID, console.UpdateLeaderboard{
		UpdateMode: &mode,
		TTLDays:    &ttl,
	})
	require.NoError(t, err)
	assert.Equal(t, console.ModeBest, updated.UpdateMode)
	assert.Equal(t, 14, updated.TTLDays)

	// The update re-emits leaderboard.created so the worker re-syncs the
	// metadata hash.
	require.Len(t, st.publisher.created, 2)
	assert.Equal(t, "best", st.publisher.created[1].UpdateMode)
	assert.Equal(t, 14, st.publisher.created[1].TTLDays)

	require.NoError(t, st.service.DeleteLeaderboard(ctx, board.ID))
	require.Len(t, st.publisher.deleted, 1)
	assert.Equal(t, board.ID, st.publisher.deleted[0].LeaderboardID)

	_, err = st.service.GetLeaderboard(ctx, board.ID)
	assert.True(t, apierr.ErrNotFound.Has(err))
}

func TestSeasons(t *testing.T) {
	st := newServiceTest(t)
	tenant, project := st.createTenantAndProject(t, context.Background())
	ctx := tenantCtx(tenant, project, console.PlanFree)

	board, err := st.service.CreateLeaderboard(ctx, console.CreateLeaderboard{Name: "scores"})
	require.NoError(t, err)

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)

	_, err = st.service.CreateSeason(ctx, console.CreateSeason{
		LeaderboardID: board.ID,
		Name:          "backwards",
		StartDate:     end,
		EndDate:       start,
	})
	assert.True(t, apierr.ErrBadRequest.Has(err), "start must precede end")

	season, err := st.service.CreateSeason(ctx, console.CreateSeason{
		LeaderboardID: board.ID,
		Name:          "summer",
		StartDate:     start,
		EndDate:       end,
	})
	require.NoError(t, err)
	assert.True(t, season.IsActive)

	seasons, err := st.service.ListSeasons(ctx, board.ID)
	require.NoError(t, err)
	assert.Len(t, seasons, 1)

	season, err = st.service.SetSeasonActive(ctx, season.ID, false)
	require.NoError(t, err)
	assert.False(t, season.IsActive)

	require.NoError(t, st.service.DeleteSeason(ctx, season.ID))
	_, err = st.service.SetSeasonActive(ctx, season.ID, true)
	assert.True(t, apierr.ErrNotFound.Has(err))

	_, err = st.service.CreateSeason(ctx, console.CreateSeason{
		LeaderboardID: uuid.New(),
		Name:          "orphan",
		StartDate:     start,
		EndDate:       end,
	})
	assert.True(t, apierr.ErrNotFound.Has(err))
}
