// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package gateway implements the authenticated HTTP ingress: api-key
// validation with caching, token-bucket rate limiting, tenant-context
// propagation and usage accounting.
package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/gateway/ratelimit"
	"github.com/podiumhq/podium/scoring"
)

var (
	mon = monkit.Package()

	// Error is the default gateway errs class.
	Error = errs.Class("gateway")
)

// Config defines configuration for the gateway server.
type Config struct {
	// Address is the public http listening address.
	Address string
	// APIKeyHeader carries the tenant api key.
	APIKeyHeader string
	// InternalSecret guards the internal-plane routes.
	InternalSecret string
	// AuthCacheTTL bounds validation memoization, max five minutes.
	AuthCacheTTL time.Duration
	// RequestTimeout is the per-operation deadline.
	RequestTimeout time.Duration
	// UsageRetention bounds the live usage counters.
	UsageRetention time.Duration
	// RateLimit configures the token bucket.
	RateLimit ratelimit.Config
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		Address:        ":8080",
		APIKeyHeader:   "X-Api-Key",
		AuthCacheTTL:   5 * time.Minute,
		RequestTimeout: 2 * time.Second,
		UsageRetention: 90 * 24 * time.Hour,
		RateLimit:      ratelimit.DefaultConfig(),
	}
}

// Pinger reports whether a dependency is reachable, used by the health
// endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the public HTTP surface.
type Server struct {
	log    *zap.Logger
	config Config

	console    *console.Service
	engine     *scoring.Engine
	accounting *accounting.Service
	limiter    *ratelimit.Limiter
	authCache  *AuthCache
	usage      *UsageTracker
	pingers    map[string]Pinger

	listener net.Listener
	server   http.Server
}

// NewServer wires the gateway onto a listener.
func NewServer(log *zap.Logger, config Config, listener net.Listener,
	consoleService *console.Service, engine *scoring.Engine,
	accountingService *accounting.Service, limiter *ratelimit.Limiter,
	authCache *AuthCache, usage *UsageTracker, pingers map[string]Pinger) *Server {

	if config.APIKeyHeader == "" {
		config.APIKeyHeader = "X-Api-Key"
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 2 * time.Second
	}

	server := &Server{
		log:        log,
		config:     config,
		console:    consoleService,
		engine:     engine,
		accounting: accountingService,
		limiter:    limiter,
		authCache:  authCache,
		usage:      usage,
		pingers:    pingers,
		listener:   listener,
	}

	router := mux.NewRouter()
	router.Use(server.withRequestID)

	router.HandleFunc("/health", server.handleHealth).Methods(http.MethodGet)

	// Public plane: api-key authenticated, rate limited, usage tracked.
	public := router.NewRoute().Subrouter()
	public.Use(server.withAuth, server.withRateLimit, server.withUsage)
	public.HandleFunc("/scores", server.handleUpdateScore).Methods(http.MethodPost)
	public.HandleFunc("/scores/batch-update", server.handleBatchUpdate).Methods(http.MethodPost)
	public.HandleFunc("/leaderboards", server.handleCreateLeaderboard).Methods(http.MethodPost)
	public.HandleFunc("/leaderboards", server.handleListLeaderboards).Methods(http.MethodGet)
	public.HandleFunc("/leaderboards/{id}", server.handleGetLeaderboard).Methods(http.MethodGet)
	public.HandleFunc("/leaderboards/{id}", server.handleUpdateLeaderboard).Methods(http.MethodPut)
	public.HandleFunc("/leaderboards/{id}", server.handleDeleteLeaderboard).Methods(http.MethodDelete)
	public.HandleFunc("/leaderboards/{id}/top", server.handleTop).Methods(http.MethodGet)
	public.HandleFunc("/leaderboards/{id}/rank/{userId}", server.handleRankOf).Methods(http.MethodGet)
	public.HandleFunc("/leaderboards/{id}/seasons", server.handleCreateSeason).Methods(http.MethodPost)
	public.HandleFunc("/leaderboards/{id}/seasons", server.handleListSeasons).Methods(http.MethodGet)
	public.HandleFunc("/seasons/{id}/active", server.handleSetSeasonActive).Methods(http.MethodPatch)
	public.HandleFunc("/seasons/{id}", server.handleDeleteSeason).Methods(http.MethodDelete)

	// Internal plane: shared-secret authenticated, never exposed publicly.
	internal := router.NewRoute().Subrouter()
	internal.Use(server.withInternalSecret)
	internal.HandleFunc("/tenants", server.handleCreateTenant).Methods(http.MethodPost)
	internal.HandleFunc("/projects", server.handleCreateProject).Methods(http.MethodPost)
	internal.HandleFunc("/api-keys", server.handleCreateAPIKey).Methods(http.MethodPost)
	internal.HandleFunc("/api-keys/{id}/rotate", server.handleRotateAPIKey).Methods(http.MethodPost)
	internal.HandleFunc("/api-keys/{id}", server.handleRevokeAPIKey).Methods(http.MethodDelete)
	internal.HandleFunc("/projects/{id}/api-keys", server.handleListAPIKeys).Methods(http.MethodGet)
	internal.HandleFunc("/validate", server.handleValidate).Methods(http.MethodPost)
	internal.HandleFunc("/subscriptions", server.handleCreateSubscription).Methods(http.MethodPost)
	internal.HandleFunc("/subscriptions/tenant/{id}", server.handleGetSubscription).Methods(http.MethodGet)
	internal.HandleFunc("/subscriptions/{id}/cancel", server.handleCancelSubscription).Methods(http.MethodPatch)
	internal.HandleFunc("/subscriptions/{id}/usage-check", server.handleUsageCheck).Methods(http.MethodGet)
	internal.HandleFunc("/usage/record", server.handleRecordUsage).Methods(http.MethodPost)
	internal.HandleFunc("/usage/tenant/{id}", server.handleTenantUsage).Methods(http.MethodGet)

	server.server = http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

// Run starts the server until the context is canceled.
func (server *Server) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close gracefully shuts the server down.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (server *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		ctx, cancel := context.WithTimeout(r.Context(), server.config.RequestTimeout)
		defer cancel()
		ctx = context.WithValue(ctx, requestIDKey{}, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAuth resolves the api key to a tenant context. Positive validations
// are memoized in the shared cache keyed by the key's hash prefix; negative
// results are never cached so revocation propagates within the TTL.
func (server *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		plaintext := r.Header.Get(server.config.APIKeyHeader)
		if plaintext == "" {
			server.serveError(w, r, apierr.ErrUnauthenticated.New("missing api key"))
			return
		}

		fingerprint := console.KeyFingerprint(plaintext)

		validation, err := server.authCache.Get(ctx, fingerprint)
		if err != nil {
			server.log.Debug("auth cache read failed", zap.Error(err))
		}
		if validation == nil {
			validation, err = server.console.ValidateAPIKey(ctx, plaintext)
			if err != nil {
				server.serveError(w, r, err)
				return
			}
			if err := server.authCache.Put(ctx, fingerprint, *validation); err != nil {
				server.log.Debug("auth cache write failed", zap.Error(err))
			}
		}

		tc := console.TenantContext{
			TenantID:  validation.TenantID,
			ProjectID: validation.ProjectID,
			PlanType:  validation.PlanType,
		}

		// Metadata for downstream components.
		r.Header.Set("X-Tenant-Id", tc.TenantID.String())
		r.Header.Set("X-Project-Id", tc.ProjectID.String())
		r.Header.Set("X-Plan-Type", string(tc.PlanType))

		next.ServeHTTP(w, r.WithContext(console.WithTenant(ctx, tc)))
	})
}

func (server *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tc, err := console.GetTenant(ctx)
		if err != nil {
			server.serveError(w, r, err)
			return
		}

		result, err := server.limiter.Allow(ctx, tc.TenantID, tc.PlanType)
		if err != nil {
			server.serveError(w, r, apierr.ErrUpstreamUnavailable.Wrap(err))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
			server.serveError(w, r, apierr.ErrRateLimited.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for usage accounting.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// withUsage increments the live usage counters after successful responses.
func (server *Server) withUsage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= 400 {
			return
		}
		tc, err := console.GetTenant(r.Context())
		if err != nil {
			return
		}
		server.usage.Record(r.Context(), tc)
	})
}

func (server *Server) withInternalSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if server.config.InternalSecret == "" {
			server.serveError(w, r, apierr.ErrForbidden.New("internal plane disabled"))
			return
		}
		secret := r.Header.Get("X-Internal-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(server.config.InternalSecret)) != 1 {
			server.serveError(w, r, apierr.ErrForbidden.New("internal secret mismatch"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth is the liveness probe; it never requires auth and reports
// dependency reachability without failing the probe.
func (server *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deps := make(map[string]string, len(server.pingers))
	for name, pinger := range server.pingers {
		if err := pinger.Ping(ctx); err != nil {
			deps[name] = "unreachable"
			continue
		}
		deps[name] = "ok"
	}
	serveJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"dependencies": deps,
	})
}

// recordUsageAsync rolls request usage into the durable monthly aggregation.
// It runs on a background context so early client disconnects do not lose
// accounting writes.
func (server *Server) recordUsageAsync(tc console.TenantContext, delta accounting.UsageDelta) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.config.RequestTimeout)
		defer cancel()
		if err := server.accounting.RecordUsage(ctx, tc.TenantID, tc.ProjectID, delta); err != nil {
			server.log.Error("usage rollup failed",
				zap.Stringer("tenantID", tc.TenantID), zap.Error(err))
		}
	}()
}
