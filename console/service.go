// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package console implements the control plane: tenants, projects, api keys,
// subscriptions, leaderboards and seasons.
package console

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/events"
)

var (
	mon = monkit.Package()

	// Error is the default console errs class.
	Error = errs.Class("console")
)

// DefaultKeyHashCost is the bcrypt work factor for api key hashes.
const DefaultKeyHashCost = bcrypt.DefaultCost

// TestKeyHashCost is the work factor used in tests.
const TestKeyHashCost = bcrypt.MinCost

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// AuthCache is the gateway's validation cache. Revocation must remove the
// cached positive entry so key invalidation takes effect within the cache
// TTL rather than never.
type AuthCache interface {
	// Invalidate drops the cached validation for the key fingerprint.
	Invalidate(ctx context.Context, fingerprint string) error
}

// Service is handling control-plane logic.
type Service struct {
	log       *zap.Logger
	store     DB
	publisher events.Publisher
	authCache AuthCache

	keyHashCost int
}

// NewService returns new instance of Service.
func NewService(log *zap.Logger, store DB, publisher events.Publisher, authCache AuthCache, keyHashCost int) (*Service, error) {
	if log == nil {
		return nil, Error.New("log can't be nil")
	}
	if store == nil {
		return nil, Error.New("store can't be nil")
	}
	if publisher == nil {
		return nil, Error.New("publisher can't be nil")
	}
	if keyHashCost == 0 {
		keyHashCost = DefaultKeyHashCost
	}

	return &Service{
		log:         log,
		store:       store,
		publisher:   publisher,
		authCache:   authCache,
		keyHashCost: keyHashCost,
	}, nil
}

// CreateTenant creates a new tenant. Email is unique across the system.
func (s *Service) CreateTenant(ctx context.Context, req CreateTenant) (_ *Tenant, err error) {
	defer mon.Task()(&ctx)(&err)

	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, apierr.ErrBadRequest.New("tenant name and email are required")
	}

	existing, err := s.store.Tenants().GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, Error.Wrap(err)
	}
	if existing != nil {
		return nil, apierr.ErrConflict.New("tenant email already registered")
	}

	return s.store.Tenants().Insert(ctx, &Tenant{
		ID:    uuid.New(),
		Name:  req.Name,
		Email: req.Email,
	})
}

// GetTenant returns a tenant by id.
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (_ *Tenant, err error) {
	defer mon.Task()(&ctx)(&err)

	tenant, err := s.store.Tenants().Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "tenant not found")
	}
	return tenant, nil
}

// DeleteTenant removes the tenant; owned projects, keys, leaderboards and
// usage cascade in the database.
func (s *Service) DeleteTenant(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(s.store.Tenants().Delete(ctx, id))
}

// CreateProject creates a project under a tenant.
func (s *Service) CreateProject(ctx context.Context, req CreateProject) (_ *Project, err error) {
	defer mon.Task()(&ctx)(&err)

	if req.Name == "" {
		return nil, apierr.ErrBadRequest.New("project name is required")
	}
	if _, err := s.store.Tenants().Get(ctx, req.TenantID); err != nil {
		return nil, notFoundOr(err, "tenant not found")
	}

	return s.store.Projects().Insert(ctx, &Project{
		ID:       uuid.New(),
		TenantID: req.TenantID,
		Name:     req.Name,
	})
}

// CreateAPIKey generates a fresh key for the project and returns the
// plaintext exactly once.
func (s *Service) CreateAPIKey(ctx context.Context, req CreateAPIKey) (_ *CreatedAPIKey, err error) {
	defer mon.Task()(&ctx)(&err)

	if req.Name == "" {
		return nil, apierr.ErrBadRequest.New("key name is required")
	}
	if _, err := s.store.Projects().Get(ctx, req.ProjectID); err != nil {
		return nil, notFoundOr(err, "project not found")
	}

	plaintext, err := GeneratePlaintextKey()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.keyHashCost)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	key, err := s.store.APIKeys().Insert(ctx, &APIKey{
		ID:          uuid.New(),
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		KeyHash:     hash,
		Fingerprint: KeyFingerprint(plaintext),
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	return &CreatedAPIKey{Key: *key, Plaintext: plaintext}, nil
}

// RotateAPIKey revokes the key and creates a replacement with the same name
// under the same project.
func (s *Service) RotateAPIKey(ctx context.Context, id uuid.UUID) (_ *CreatedAPIKey, err error) {
	defer mon.Task()(&ctx)(&err)

	key, err := s.store.APIKeys().Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "api key not found")
	}
	if err := s.RevokeAPIKey(ctx, id); err != nil {
		return nil, err
	}
	return s.CreateAPIKey(ctx, CreateAPIKey{ProjectID: key.ProjectID, Name: key.Name})
}

// RevokeAPIKey marks the key revoked and drops its validation cache entry.
func (s *Service) RevokeAPIKey(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	key, err := s.store.APIKeys().Get(ctx, id)
	if err != nil {
		return notFoundOr(err, "api key not found")
	}
	if err := s.store.APIKeys().Revoke(ctx, id, time.Now().UTC()); err != nil {
		return Error.Wrap(err)
	}

	if s.authCache != nil {
		if err := s.authCache.Invalidate(ctx, key.Fingerprint); err != nil {
			s.log.Error("auth cache invalidation failed",
				zap.Stringer("keyID", id), zap.Error(err))
		}
	}
	return nil
}

// ListAPIKeys returns all keys of a project, revoked included.
func (s *Service) ListAPIKeys(ctx context.Context, projectID uuid.UUID) (_ []APIKey, err error) {
	defer mon.Task()(&ctx)(&err)
	keys, err := s.store.APIKeys().GetByProjectID(ctx, projectID)
	return keys, Error.Wrap(err)
}

// ValidateAPIKey resolves a plaintext key to its tenant context. Lookup is
// by fingerprint with revoked keys filtered first, then the plaintext is
// verified against the adaptive hash. Missing, malformed and revoked keys
// are indistinguishable to the caller.
func (s *Service) ValidateAPIKey(ctx context.Context, plaintext string) (_ *Validation, err error) {
	defer mon.Task()(&ctx)(&err)

	if !strings.HasPrefix(plaintext, KeyPrefix) {
		return nil, apierr.ErrUnauthenticated.New("malformed api key")
	}

	key, err := s.store.APIKeys().GetByFingerprint(ctx, KeyFingerprint(plaintext))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.ErrUnauthenticated.New("invalid api key")
		}
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}
	if key.Revoked() {
		return nil, apierr.ErrUnauthenticated.New("invalid api key")
	}

	// bcrypt compares in constant time.
	if err := bcrypt.CompareHashAndPassword(key.KeyHash, []byte(plaintext)); err != nil {
		return nil, apierr.ErrUnauthenticated.New("invalid api key")
	}

	project, err := s.store.Projects().Get(ctx, key.ProjectID)
	if err != nil {
		return nil, apierr.ErrUpstreamUnavailable.Wrap(err)
	}

	plan := PlanFree
	if sub, err := s.store.Subscriptions().GetActiveByTenantID(ctx, project.TenantID); err == nil && sub != nil {
		plan = sub.PlanType
	}

	if err := s.store.APIKeys().TouchLastUsed(ctx, key.ID, time.Now().UTC()); err != nil {
		s.log.Debug("last used touch failed", zap.Stringer("keyID", key.ID), zap.Error(err))
	}

	return &Validation{
		Valid:     true,
		KeyID:     key.ID,
		TenantID:  project.TenantID,
		ProjectID: project.ID,
		PlanType:  plan,
	}, nil
}

// CreateSubscription activates a plan for a tenant. At most one active
// subscription may exist per tenant.
func (s *Service) CreateSubscription(ctx context.Context, req CreateSubscription) (_ *Subscription, err error) {
	defer mon.Task()(&ctx)(&err)

	if !req.PlanType.Valid() {
		return nil, apierr.ErrBadRequest.New("unknown plan type %q", req.PlanType)
	}
	if _, err := s.store.Tenants().Get(ctx, req.TenantID); err != nil {
		return nil, notFoundOr(err, "tenant not found")
	}

	now := time.Now().UTC()
	return s.store.Subscriptions().Insert(ctx, &Subscription{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		PlanType:    req.PlanType,
		Status:      SubscriptionActive,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
	})
}

// GetActiveSubscription returns the tenant's active subscription.
func (s *Service) GetActiveSubscription(ctx context.Context, tenantID uuid.UUID) (_ *Subscription, err error) {
	defer mon.Task()(&ctx)(&err)

	sub, err := s.store.Subscriptions().GetActiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "no active subscription")
	}
	return sub, nil
}

// CancelSubscription flags the subscription to lapse at period end, or
// cancels immediately when immediate is set.
func (s *Service) CancelSubscription(ctx context.Context, id uuid.UUID, immediate bool) (_ *Subscription, err error) {
	defer mon.Task()(&ctx)(&err)

	sub, err := s.store.Subscriptions().Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "subscription not found")
	}
	if immediate {
		sub.Status = SubscriptionCancelled
	}
	sub.CancelAtPeriodEnd = true
	if err := s.store.Subscriptions().Update(ctx, sub); err != nil {
		return nil, Error.Wrap(err)
	}
	return sub, nil
}

// CreateLeaderboard creates a leaderboard in the tenant context's project and
// emits leaderboard.created so the worker writes the metadata hash.
func (s *Service) CreateLeaderboard(ctx context.Context, req CreateLeaderboard) (_ *Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	tc, err := GetTenant(ctx)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, apierr.ErrBadRequest.New("leaderboard name is required")
	}
	if req.SortOrder == "" {
		req.SortOrder = SortDesc
	}
	if req.UpdateMode == "" {
		req.UpdateMode = ModeReplace
	}
	if !req.SortOrder.Valid() {
		return nil, apierr.ErrBadRequest.New("unknown sort order %q", req.SortOrder)
	}
	if !req.UpdateMode.Valid() {
		return nil, apierr.ErrBadRequest.New("unknown update mode %q", req.UpdateMode)
	}
	if req.TTLDays < 0 {
		return nil, apierr.ErrBadRequest.New("ttlDays must not be negative")
	}
	if req.ResetSchedule != "" {
		if _, err := cronParser.Parse(req.ResetSchedule); err != nil {
			return nil, apierr.ErrBadRequest.New("invalid reset schedule: %v", err)
		}
	}

	board, err := s.store.Leaderboards().Insert(ctx, &Leaderboard{
		ID:            uuid.New(),
		ProjectID:     tc.ProjectID,
		Name:          req.Name,
		Description:   req.Description,
		SortOrder:     req.SortOrder,
		UpdateMode:    req.UpdateMode,
		ResetSchedule: req.ResetSchedule,
		TTLDays:       req.TTLDays,
		IsActive:      true,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.publisher.LeaderboardCreated(ctx, s.createdEvent(tc.TenantID, board))
	return board, nil
}

// GetLeaderboard returns a leaderboard, enforcing tenant scoping.
func (s *Service) GetLeaderboard(ctx context.Context, id uuid.UUID) (_ *Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	tc, err := GetTenant(ctx)
	if err != nil {
		return nil, err
	}
	board, err := s.store.Leaderboards().Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "leaderboard not found")
	}
	if board.ProjectID != tc.ProjectID {
		return nil, apierr.ErrNotFound.New("leaderboard not found")
	}
	return board, nil
}

// ListLeaderboards returns the leaderboards of the tenant context's project.
func (s *Service) ListLeaderboards(ctx context.Context) (_ []Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	tc, err := GetTenant(ctx)
	if err != nil {
		return nil, err
	}
	boards, err := s.store.Leaderboards().GetByProjectID(ctx, tc.ProjectID)
	return boards, Error.Wrap(err)
}

// UpdateLeaderboard mutates leaderboard fields. The metadata hash is
// re-synced by re-emitting leaderboard.created: the worker's upsert handler
// is idempotent, so no dedicated update subject is needed.
func (s *Service) UpdateLeaderboard(ctx context.Context, id uuid.UUID, req UpdateLeaderboard) (_ *Leaderboard, err error) {
	defer mon.Task()(&ctx)(&err)

	tc, err := GetTenant(ctx)
	if err != nil {
		return nil, err
	}
	board, err := s.GetLeaderboard(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, apierr.ErrBadRequest.New("leaderboard name is required")
		}
		board.Name = *req.Name
	}
	if req.Description != nil {
		board.Description = *req.Description
	}
	if req.SortOrder != nil {
		if !req.SortOrder.Valid() {
			return nil, apierr.ErrBadRequest.New("unknown sort order %q", *req.SortOrder)
		}
		board.SortOrder = *req.SortOrder
	}
	if req.UpdateMode != nil {
		if !req.UpdateMode.Valid() {
			return nil, apierr.ErrBadRequest.New("unknown update mode %q", *req.UpdateMode)
		}
		board.UpdateMode = *req.UpdateMode
	}
	if req.ResetSchedule != nil {
		if *req.ResetSchedule != "" {
			if _, err := cronParser.Parse(*req.ResetSchedule); err != nil {
				return nil, apierr.ErrBadRequest.New("invalid reset schedule: %v", err)
			}
		}
		board.ResetSchedule = *req.ResetSchedule
	}
	if req.TTLDays != nil {
		if *req.TTLDays < 0 {
			return nil, apierr.ErrBadRequest.New("ttlDays must not be negative")
		}
		board.TTLDays = *req.TTLDays
	}
	if req.IsActive != nil {
		board.IsActive = *req.IsActive
	}
	if req.Metadata != nil {
		board.Metadata = *req.Metadata
	}

	if err := s.store.Leaderboards().Update(ctx, board); err != nil {
		return nil, err
	}

	s.publisher.LeaderboardCreated(ctx, s.createdEvent(tc.TenantID, board))
	return board, nil
}

// DeleteLeaderboard removes the leaderboard and instructs the worker to
// purge the sorted-set key and metadata hash.
func (s *Service) DeleteLeaderboard(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	tc, err := GetTenant(ctx)
	if err != nil {
		return err
	}
	board, err := s.GetLeaderboard(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Leaderboards().Delete(ctx, id); err != nil {
		return Error.Wrap(err)
	}

	s.publisher.LeaderboardDeleted(ctx, events.LeaderboardDeleted{
		Type:          events.SubjectLeaderboardDeleted,
		LeaderboardID: board.ID,
		ProjectID:     board.ProjectID,
		TenantID:      tc.TenantID,
		Name:          board.Name,
		Timestamp:     time.Now().UTC(),
	})
	return nil
}

// CreateSeason creates a season for a leaderboard of the current project.
func (s *Service) CreateSeason(ctx context.Context, req CreateSeason) (_ *Season, err error) {
	defer mon.Task()(&ctx)(&err)

	if req.Name == "" {
		return nil, apierr.ErrBadRequest.New("season name is required")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, apierr.ErrBadRequest.New("season start must precede end")
	}
	if _, err := s.GetLeaderboard(ctx, req.LeaderboardID); err != nil {
		return nil, err
	}

	return s.store.Seasons().Insert(ctx, &Season{
		ID:            uuid.New(),
		LeaderboardID: req.LeaderboardID,
		Name:          req.Name,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsActive:      true,
		Metadata:      req.Metadata,
	})
}

// ListSeasons returns all seasons of a leaderboard.
func (s *Service) ListSeasons(ctx context.Context, leaderboardID uuid.UUID) (_ []Season, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := s.GetLeaderboard(ctx, leaderboardID); err != nil {
		return nil, err
	}
	seasons, err := s.store.Seasons().GetByLeaderboardID(ctx, leaderboardID)
	return seasons, Error.Wrap(err)
}

// SetSeasonActive activates or deactivates a season.
func (s *Service) SetSeasonActive(ctx context.Context, id uuid.UUID, active bool) (_ *Season, err error) {
	defer mon.Task()(&ctx)(&err)

	season, err := s.store.Seasons().Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "season not found")
	}
	if _, err := s.GetLeaderboard(ctx, season.LeaderboardID); err != nil {
		return nil, err
	}
	season.IsActive = active
	if err := s.store.Seasons().Update(ctx, season); err != nil {
		return nil, Error.Wrap(err)
	}
	return season, nil
}

// DeleteSeason removes a season.
func (s *Service) DeleteSeason(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	season, err := s.store.Seasons().Get(ctx, id)
	if err != nil {
		return notFoundOr(err, "season not found")
	}
	if _, err := s.GetLeaderboard(ctx, season.LeaderboardID); err != nil {
		return err
	}
	return Error.Wrap(s.store.Seasons().Delete(ctx, id))
}

func (s *Service) createdEvent(tenantID uuid.UUID, board *Leaderboard) events.LeaderboardCreated {
	return events.LeaderboardCreated{
		Type:          events.SubjectLeaderboardCreated,
		LeaderboardID: board.ID,
		ProjectID:     board.ProjectID,
		TenantID:      tenantID,
		Name:          board.Name,
		SortOrder:     string(board.SortOrder),
		UpdateMode:    string(board.UpdateMode),
		TTLDays:       board.TTLDays,
		Timestamp:     time.Now().UTC(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// notFoundOr maps sql.ErrNoRows to a not-found kind and everything else to
// upstream unavailability.
func notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.ErrNotFound.New("%s", message)
	}
	if apierr.ErrNotFound.Has(err) {
		return err
	}
	return apierr.ErrUpstreamUnavailable.Wrap(err)
}
