// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/podiumhq/podium/apierr"
)

// errorBody is the single error envelope emitted by the gateway.
type errorBody struct {
	Error struct {
		Code    apierr.Code    `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`
}

// serveError renders err through the kind table. Internal details never
// leak: unclassified errors get a generic message.
func (server *Server) serveError(w http.ResponseWriter, r *http.Request, err error) {
	server.serveErrorDetails(w, r, err, nil)
}

func (server *Server) serveErrorDetails(w http.ResponseWriter, r *http.Request, err error, details map[string]any) {
	status, code := apierr.Classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		server.log.Error("internal error",
			zap.String("requestId", requestID(r.Context())),
			zap.Error(err))
		message = "internal server error"
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Details = details
	body.Timestamp = time.Now().UTC()
	body.RequestID = requestID(r.Context())

	serveJSON(w, status, body)
}

func serveJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
