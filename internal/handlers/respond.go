package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/repositories"
)

// apiEnvelope is the wire shape shared by every endpoint.
type apiEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// respondData writes the success envelope.
func respondData(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	writeEnvelope(ctx, w, apiEnvelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// respondError writes the error envelope. Message strings are the only
// internal detail ever surfaced to callers.
func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeEnvelope(ctx, w, apiEnvelope{StatusCode: status, Message: message, Success: false})
}

// respondStoreError maps repository sentinel errors onto the API taxonomy,
// falling back to a generic 500 so store internals never leak.
func respondStoreError(ctx context.Context, w http.ResponseWriter, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, repositories.ErrConflict):
		respondError(ctx, w, http.StatusConflict, "resource already exists")
	default:
		logging.FromContext(ctx).Error("store operation failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}

func writeEnvelope(ctx context.Context, w http.ResponseWriter, envelope apiEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(envelope.StatusCode)

	logger := logging.FromContext(ctx)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logger.Error("encode response body", "status", envelope.StatusCode, "error", err)
		return
	}

	switch {
	case envelope.StatusCode >= http.StatusInternalServerError:
		logger.Error("request failed", "status", envelope.StatusCode, "message", envelope.Message)
	case envelope.StatusCode >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", envelope.StatusCode, "message", envelope.Message)
	}
}
