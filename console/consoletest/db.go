// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package consoletest provides an in-memory console.DB for tests.
package consoletest

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
)

// DB is an in-memory implementation of console.DB. Absent rows surface as
// sql.ErrNoRows, matching the relational implementation.
type DB struct {
	mu sync.Mutex

	tenants       map[uuid.UUID]console.Tenant
	projects      map[uuid.UUID]console.Project
	apikeys       map[uuid.UUID]console.APIKey
	subscriptions map[uuid.UUID]console.Subscription
	leaderboards  map[uuid.UUID]console.Leaderboard
	seasons       map[uuid.UUID]console.Season
}

// ensures DB implements console.DB.
var _ console.DB = (*DB)(nil)

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{
		tenants:       make(map[uuid.UUID]console.Tenant),
		projects:      make(map[uuid.UUID]console.Project),
		apikeys:       make(map[uuid.UUID]console.APIKey),
		subscriptions: make(map[uuid.UUID]console.Subscription),
		leaderboards:  make(map[uuid.UUID]console.Leaderboard),
		seasons:       make(map[uuid.UUID]console.Season),
	}
}

// Tenants implements console.DB.
func (db *DB) Tenants() console.Tenants { return (*tenants)(db) }

// Projects implements console.DB.
func (db *DB) Projects() console.Projects { return (*projects)(db) }

// APIKeys implements console.DB.
func (db *DB) APIKeys() console.APIKeys { return (*apikeys)(db) }

// Subscriptions implements console.DB.
func (db *DB) Subscriptions() console.Subscriptions { return (*subscriptions)(db) }

// Leaderboards implements console.DB.
func (db *DB) Leaderboards() console.Leaderboards { return (*leaderboards)(db) }

// Seasons implements console.DB.
func (db *DB) Seasons() console.Seasons { return (*seasons)(db) }

// Close implements console.DB.
func (db *DB) Close() error { return nil }

type tenants DB

func (repo *tenants) Insert(ctx context.Context, tenant *console.Tenant) (*console.Tenant, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored := *tenant
	stored.CreatedAt = time.Now().UTC()
	repo.tenants[stored.ID] = stored
	return &stored, nil
}

func (repo *tenants) Get(ctx context.Context, id uuid.UUID) (*console.Tenant, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	tenant, ok := repo.tenants[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tenant, nil
}

func (repo *tenants) GetByEmail(ctx context.Context, email string) (*console.Tenant, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, tenant := range repo.tenants {
		if tenant.Email == email {
			return &tenant, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (repo *tenants) Delete(ctx context.Context, id uuid.UUID) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	delete(repo.tenants, id)
	for pid, project := range repo.projects {
		if project.TenantID == id {
			delete(repo.projects, pid)
		}
	}
	return nil
}

type projects DB

func (repo *projects) Insert(ctx context.Context, project *console.Project) (*console.Project, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored := *project
	stored.CreatedAt = time.Now().UTC()
	repo.projects[stored.ID] = stored
	return &stored, nil
}

func (repo *projects) Get(ctx context.Context, id uuid.UUID) (*console.Project, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	project, ok := repo.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &project, nil
}

func (repo *projects) GetByTenantID(ctx context.Context, tenantID uuid.UUID) ([]console.Project, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var result []console.Project
	for _, project := range repo.projects {
		if project.TenantID == tenantID {
			result = append(result, project)
		}
	}
	return result, nil
}

func (repo *projects) Delete(ctx context.Context, id uuid.UUID) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	delete(repo.projects, id)
	return nil
}

type apikeys DB

func (repo *apikeys) Insert(ctx context.Context, key *console.APIKey) (*console.APIKey, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored := *key
	stored.CreatedAt = time.Now().UTC()
	repo.apikeys[stored.ID] = stored
	return &stored, nil
}

func (repo *apikeys) Get(ctx context.Context, id uuid.UUID) (*console.APIKey, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key, ok := repo.apikeys[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &key, nil
}

func (repo *apikeys) GetByFingerprint(ctx context.Context, fingerprint string) (*console.APIKey, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	// Live keys first, matching the relational ordering.
	var revoked *console.APIKey
	for id := range repo.apikeys {
		key := repo.apikeys[id]
		if key.Fingerprint != fingerprint {
			continue
		}
		if !key.Revoked() {
			return &key, nil
		}
		revoked = &key
	}
	if revoked != nil {
		return revoked, nil
	}
	return nil, sql.ErrNoRows
}

func (repo *apikeys) GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]console.APIKey, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var result []console.APIKey
	for _, key := range repo.apikeys {
		if key.ProjectID == projectID {
			result = append(result, key)
		}
	}
	return result, nil
}

func (repo *apikeys) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key, ok := repo.apikeys[id]
	if !ok || key.Revoked() {
		return nil
	}
	key.RevokedAt = &at
	repo.apikeys[id] = key
	return nil
}

func (repo *apikeys) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key, ok := repo.apikeys[id]
	if !ok {
		return nil
	}
	key.LastUsedAt = &at
	repo.apikeys[id] = key
	return nil
}

func (repo *apikeys) CountActiveByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var count int64
	for _, key := range repo.apikeys {
		if key.Revoked() {
			continue
		}
		project, ok := repo.projects[key.ProjectID]
		if ok && project.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

type subscriptions DB

func (repo *subscriptions) Insert(ctx context.Context, sub *console.Subscription) (*console.Subscription, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, existing := range repo.subscriptions {
		if existing.TenantID == sub.TenantID && existing.Status == console.SubscriptionActive {
			return nil, apierr.ErrConflict.New("tenant already has an active subscription")
		}
	}

	stored := *sub
	stored.CreatedAt = time.Now().UTC()
	repo.subscriptions[stored.ID] = stored
	return &stored, nil
}

func (repo *subscriptions) Get(ctx context.Context, id uuid.UUID) (*console.Subscription, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	sub, ok := repo.subscriptions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (repo *subscriptions) GetActiveByTenantID(ctx context.Context, tenantID uuid.UUID) (*console.Subscription, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, sub := range repo.subscriptions {
		if sub.TenantID == tenantID && sub.Status == console.SubscriptionActive {
			return &sub, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (repo *subscriptions) Update(ctx context.Context, sub *console.Subscription) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.subscriptions[sub.ID]; !ok {
		return sql.ErrNoRows
	}
	repo.subscriptions[sub.ID] = *sub
	return nil
}

type leaderboards DB

func (repo *leaderboards) Insert(ctx context.Context, board *console.Leaderboard) (*console.Leaderboard, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, existing := range repo.leaderboards {
		if existing.ProjectID == board.ProjectID && existing.Name == board.Name {
			return nil, apierr.ErrConflict.New("leaderboard name already used in project")
		}
	}

	stored := *board
	stored.CreatedAt = time.Now().UTC()
	repo.leaderboards[stored.ID] = stored
	return &stored, nil
}

func (repo *leaderboards) Get(ctx context.Context, id uuid.UUID) (*console.Leaderboard, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	board, ok := repo.leaderboards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &board, nil
}

func (repo *leaderboards) GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]console.Leaderboard, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var result []console.Leaderboard
	for _, board := range repo.leaderboards {
		if board.ProjectID == projectID {
			result = append(result, board)
		}
	}
	return result, nil
}

func (repo *leaderboards) Update(ctx context.Context, board *console.Leaderboard) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.leaderboards[board.ID]; !ok {
		return sql.ErrNoRows
	}
	repo.leaderboards[board.ID] = *board
	return nil
}

func (repo *leaderboards) Delete(ctx context.Context, id uuid.UUID) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	delete(repo.leaderboards, id)
	for sid, season := range repo.seasons {
		if season.LeaderboardID == id {
			delete(repo.seasons, sid)
		}
	}
	return nil
}

func (repo *leaderboards) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var count int64
	for _, board := range repo.leaderboards {
		project, ok := repo.projects[board.ProjectID]
		if ok && project.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (repo *leaderboards) ListScheduled(ctx context.Context) ([]console.Leaderboard, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var result []console.Leaderboard
	for _, board := range repo.leaderboards {
		if board.IsActive && board.ResetSchedule != "" {
			result = append(result, board)
		}
	}
	return result, nil
}

type seasons DB

func (repo *seasons) Insert(ctx context.Context, season *console.Season) (*console.Season, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored := *season
	stored.CreatedAt = time.Now().UTC()
	repo.seasons[stored.ID] = stored
	return &stored, nil
}

func (repo *seasons) Get(ctx context.Context, id uuid.UUID) (*console.Season, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	season, ok := repo.seasons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &season, nil
}

func (repo *seasons) GetByLeaderboardID(ctx context.Context, leaderboardID uuid.UUID) ([]console.Season, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var result []console.Season
	for _, season := range repo.seasons {
		if season.LeaderboardID == leaderboardID {
			result = append(result, season)
		}
	}
	return result, nil
}

func (repo *seasons) Update(ctx context.Context, season *console.Season) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.seasons[season.ID]; !ok {
		return sql.ErrNoRows
	}
	repo.seasons[season.ID] = *season
	return nil
}

func (repo *seasons) Delete(ctx context.Context, id uuid.UUID) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	delete(repo.seasons, id)
	return nil
}
