package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/veritas/internal/api/middleware"
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/service"
	"github.com/google/uuid"
)

// CheckpointHandler serves checkpoints. The caller is always the owner or
// requester; there is no way to act on behalf of another user.
type CheckpointHandler struct {
	ledger *service.LedgerService
}

func NewCheckpointHandler(ledger *service.LedgerService) *CheckpointHandler {
	return &CheckpointHandler{ledger: ledger}
}

type createCheckpointRequest struct {
	Label    string   `json:"label"`
	ClaimIDs []string `json:"claim_ids"`
}

func (h *CheckpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCheckpointRequest
	if !decode(w, r, &req) {
		return
	}
	ids := make([]uuid.UUID, 0, len(req.ClaimIDs))
	for _, raw := range req.ClaimIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid claim id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	cp, err := h.ledger.CreateCheckpoint(r.Context(), middleware.UserIDFromContext(r.Context()), req.Label, ids)
	if err != nil {
		writeServiceError(w, err, "failed to create checkpoint")
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

func (h *CheckpointHandler) List(w http.ResponseWriter, r *http.Request) {
	cps, err := h.ledger.ListCheckpoints(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "failed to list checkpoints")
		return
	}
	if cps == nil {
		cps = []domain.Checkpoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": cps, "count": len(cps)})
}

func (h *CheckpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "checkpoint")
	if !ok {
		return
	}
	cp, err := h.ledger.GetCheckpoint(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get checkpoint")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (h *CheckpointHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "checkpoint")
	if !ok {
		return
	}
	result, err := h.ledger.Rollback(r.Context(), id, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "failed to roll back")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *CheckpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "checkpoint")
	if !ok {
		return
	}
	if err := h.ledger.DeleteCheckpoint(r.Context(), id, middleware.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, err, "failed to delete checkpoint")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
