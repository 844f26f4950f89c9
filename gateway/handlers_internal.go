// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/console"
)

func (server *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req console.CreateTenant
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}
	tenant, err := server.console.CreateTenant(r.Context(), req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusCreated, tenant)
}

func (server *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req console.CreateProject
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}
	project, err := server.console.CreateProject(r.Context(), req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusCreated, project)
}

func (server *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req console.CreateAPIKey
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}
	created, err := server.console.CreateAPIKey(r.Context(), req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusCreated, created)
}

func (server *Server) handleRotateAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid key id"))
		return
	}
	created, err := server.console.RotateAPIKey(r.Context(), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, created)
}

func (server *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid key id"))
		return
	}
	if err := server.console.RevokeAPIKey(r.Context(), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, map[string]any{"revoked": id})
}

func (server *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid project id"))
		return
	}
	keys, err := server.console.ListAPIKeys(r.Context(), projectID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (server *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}

	validation, err := server.console.ValidateAPIKey(r.Context(), req.Key)
	if err != nil {
		if apierr.ErrUnauthenticated.Has(err) {
			serveJSON(w, http.StatusOK, console.Validation{Valid: false})
			return
		}
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, validation)
}

func (server *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req console.CreateSubscription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}
	sub, err := server.console.CreateSubscription(r.Context(), req)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusCreated, sub)
}

func (server *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid tenant id"))
		return
	}
	sub, err := server.console.GetActiveSubscription(r.Context(), tenantID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, sub)
}

func (server *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid subscription id"))
		return
	}
	immediate := r.URL.Query().Get("immediate") == "true"
	sub, err := server.console.CancelSubscription(r.Context(), id, immediate)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, sub)
}

func (server *Server) handleUsageCheck(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid subscription id"))
		return
	}
	check, err := server.accounting.UsageCheck(r.Context(), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, check)
}

func (server *Server) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID  uuid.UUID             `json:"tenantId"`
		ProjectID uuid.UUID             `json:"projectId"`
		Delta     accounting.UsageDelta `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid request body"))
		return
	}
	if err := server.accounting.RecordUsage(r.Context(), req.TenantID, req.ProjectID, req.Delta); err != nil {
		server.serveError(w, r, err)
		return
	}
	serveJSON(w, http.StatusOK, map[string]any{"recorded": true})
}

func (server *Server) handleTenantUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.serveError(w, r, apierr.ErrBadRequest.New("invalid tenant id"))
		return
	}

	records, err := server.accounting.TenantUsage(r.Context(), tenantID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	today := time.Now().UTC().Format("2006-01-02")
	live, err := server.usage.TenantCounters(r.Context(), tenantID.String(), today)
	if err != nil {
		server.log.Debug("live usage read failed")
		live = nil
	}

	serveJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"live":    live,
	})
}
