package handlers

import (
	"net/http"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/api/middleware"
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/service"
)

type FactHandler struct {
	facts *service.FactService
}

func NewFactHandler(facts *service.FactService) *FactHandler {
	return &FactHandler{facts: facts}
}

type extractFactsRequest struct {
	Text string `json:"text"`
}

// Extract stores the facts found in text at the caller's verification level.
func (h *FactHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractFactsRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()
	facts, err := h.facts.ExtractAndStore(ctx, middleware.UserIDFromContext(ctx), req.Text, middleware.UserLevelFromContext(ctx))
	if err != nil {
		writeServiceError(w, err, "failed to extract facts")
		return
	}
	if facts == nil {
		facts = []domain.Fact{}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"facts": facts, "count": len(facts)})
}

func (h *FactHandler) Relevant(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	ctx := r.Context()
	facts, err := h.facts.Relevant(ctx, middleware.UserIDFromContext(ctx), query, queryInt(r, "n", service.DefaultRelevantFacts))
	if err != nil {
		writeServiceError(w, err, "failed to find relevant facts")
		return
	}
	if facts == nil {
		facts = []domain.FactWithScore{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts, "count": len(facts)})
}

// Pending lists the caller's pending facts. Reviewers may pass all=true to
// see every user's queue.
func (h *FactHandler) Pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	if r.URL.Query().Get("all") == "true" {
		if !middleware.UserLevelFromContext(ctx).CanReview() {
			writeServiceError(w, service.ErrReviewerNotAuthorized, "")
			return
		}
		userID = ""
	}

	facts, err := h.facts.ListPending(ctx, userID)
	if err != nil {
		writeServiceError(w, err, "failed to list pending facts")
		return
	}
	if facts == nil {
		facts = []domain.Fact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts, "count": len(facts)})
}

type verifyFactRequest struct {
	Approve bool `json:"approve"`
}

func (h *FactHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "fact")
	if !ok {
		return
	}
	var req verifyFactRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	err := h.facts.VerifyFact(ctx, id, middleware.UserIDFromContext(ctx), middleware.UserLevelFromContext(ctx), req.Approve)
	if err != nil {
		writeServiceError(w, err, "failed to verify fact")
		return
	}

	state := domain.TrustRejected
	if req.Approve {
		state = domain.TrustVerified
	}
	writeJSON(w, http.StatusOK, map[string]any{"fact_id": id, "trust_state": state})
}
