// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/scoring"
)

// checkWriteQuota gates score writes on the monthly plan budget. The rate
// limiter handles burst rate; this rejects tenants whose month is spent,
// with a reason code distinct from rate limiting.
func (server *Server) checkWriteQuota(r *http.Request, tc console.TenantContext) error {
	check, err := server.accounting.CheckTenant(r.Context(), tc.TenantID, tc.PlanType)
	if err != nil {
		// Quota state being unreadable must not take down the hot path.
		server.log.Error("quota check failed",
			zap.Stringer("tenantID", tc.TenantID), zap.Error(err))
		return nil
	}
	if !check.Requests.WithinLimit {
		return apierr.ErrQuotaExceeded.New("monthly request quota exhausted")
	}
	return nil
}

func (server *Server) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc, err := console.GetTenant(ctx)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if err := server.checkWriteQuota(r, tc); err != nil {
		server.serveError(w, r, err)
		return
	}

	var req scoring.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}

	result, err := server.engine.UpdateScore(ctx, req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	server.recordUsageAsync(tc, accounting.UsageDelta{ScoreUpdates: 1})
	serveJSON(w, http.StatusOK, result)
}

func (server *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc, err := console.GetTenant(ctx)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if err := server.checkWriteQuota(r, tc); err != nil {
		server.serveError(w, r, err)
		return
	}

	var req struct {
		Updates []scoring.UpdateRequest `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}

	results, err := server.engine.BatchUpdateScore(ctx, req.Updates)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	server.recordUsageAsync(tc, accounting.UsageDelta{ScoreUpdates: int64(len(results))})
	serveJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (server *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc, err := console.GetTenant(ctx)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	boardID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid leaderboard id"))
		return
	}

	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	result, err := server.engine.Top(ctx, boardID, limit, offset)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	server.recordUsageAsync(tc, accounting.UsageDelta{LeaderboardReads: 1})
	serveJSON(w, http.StatusOK, result)
}

func (server *Server) handleRankOf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc, err := console.GetTenant(ctx)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	vars := mux.Vars(r)
	boardID, err := uuid.Parse(vars["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid leaderboard id"))
		return
	}

	opts := scoring.RankOptions{
		WithNeighbors: r.URL.Query().Get("withNeighbors") == "true",
		NeighborCount: queryInt(r, "neighborCount", 0),
	}

	result, err := server.engine.RankOf(ctx, boardID, vars["userId"], opts)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	server.recordUsageAsync(tc, accounting.UsageDelta{LeaderboardReads: 1})
	serveJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, name string, fallback int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
