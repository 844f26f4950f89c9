// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
)

func (server *Server) handleCreateLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req console.CreateLeaderboard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}

	board, err := server.console.CreateLeaderboard(r.Context(), req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusCreated, board)
}

func (server *Server) handleListLeaderboards(w http.ResponseWriter, r *http.Request) {
	boards, err := server.console.ListLeaderboards(r.Context())
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, map[string]any{"leaderboards": boards})
}

func (server *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid leaderboard id"))
		return
	}
	board, err := server.console.GetLeaderboard(r.Context(), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, board)
}

func (server *Server) handleUpdateLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid leaderboard id"))
		return
	}

	var req console.UpdateLeaderboard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}

	board, err := server.console.UpdateLeaderboard(r.Context(), id, req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, board)
}

func (server *Server) handleDeleteLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid leaderboard id"))
		return
	}
	if err := server.console.DeleteLeaderboard(r.Context(), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (server *Server) handleCreateSeason(w http.ResponseWriter, r *http.Request) {
	boardID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid leaderboard id"))
		return
	}

	var req console.CreateSeason
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}
	req.LeaderboardID = boardID

	season, err := server.console.CreateSeason(r.Context(), req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusCreated, season)
}

func (server *Server) handleListSeasons(w http.ResponseWriter, r *http.Request) {
	boardID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid leaderboard id"))
		return
	}
	seasons, err := server.console.ListSeasons(r.Context(), boardID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, map[string]any{"seasons": seasons})
}

func (server *Server) handleSetSeasonActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid season id"))
		return
	}

	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}

	season, err := server.console.SetSeasonActive(r.Context(), id, req.IsActive)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, season)
}

func (server *Server) handleDeleteSeason(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid season id"))
		return
	}
	if err := server.console.DeleteSeason(r.Context(), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
