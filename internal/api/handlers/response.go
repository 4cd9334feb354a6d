package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/veritas/internal/service"
	"github.com/Harshitk-cp/veritas/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// writeServiceError maps service sentinels to HTTP statuses. Anything
// unrecognised is a 500 with a generic message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrClaimNotFound),
		errors.Is(err, service.ErrCheckpointNotFound),
		errors.Is(err, service.ErrFactNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrNotCheckpointOwner),
		errors.Is(err, service.ErrReviewerNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrFactAlreadyReviewed),
		errors.Is(err, service.ErrClaimInvalidated),
		errors.Is(err, stream.ErrStreamExists):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrClaimStatementEmpty),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidBranch),
		errors.Is(err, service.ErrInvalidDependencyType),
		errors.Is(err, service.ErrHighTrustConfidence),
		errors.Is(err, service.ErrConfidenceOutOfRange),
		errors.Is(err, service.ErrInvalidatedByRequired),
		errors.Is(err, service.ErrOwnerRequired),
		errors.Is(err, service.ErrFactUserMissing),
		errors.Is(err, service.ErrInvalidUserLevel):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
