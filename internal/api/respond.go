package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/internal/portal"
)

const maxJSONBody = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, portal.ErrInvalidInput):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, portal.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, portal.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, portal.ErrUnavailable):
		msg = "service not configured"
	}

	log := zap.L().With(zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	if status >= http.StatusInternalServerError {
		log.Error("api: request failed")
	} else {
		log.Debug("api: request rejected", zap.Int("status", status))
	}
	writeJSON(w, status, errorBody{Error: msg, Details: err.Error()})
}

func writeStatus(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF):
		writeStatus(w, http.StatusBadRequest, "invalid request", "request body is empty")
	default:
		writeStatus(w, http.StatusBadRequest, "invalid request", "malformed JSON: "+err.Error())
	}
	return false
}
