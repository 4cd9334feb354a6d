package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/veritas/internal/api/middleware"
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/service"
	"github.com/google/uuid"
)

type ClaimHandler struct {
	ledger *service.LedgerService
}

func NewClaimHandler(ledger *service.LedgerService) *ClaimHandler {
	return &ClaimHandler{ledger: ledger}
}

type createClaimRequest struct {
	Statement     string   `json:"statement"`
	Domain        string   `json:"domain,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Importance    float32  `json:"importance,omitempty"`
	InitialState  string   `json:"initial_state,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	Confidence    *int     `json:"confidence,omitempty"`
	PriorityQueue string   `json:"priority_queue,omitempty"`
	Trigger       string   `json:"trigger,omitempty"`
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClaimRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PriorityQueue != "" && !domain.ValidPriorityQueue(req.PriorityQueue) {
		writeError(w, http.StatusBadRequest, "invalid priority_queue")
		return
	}

	claim, err := h.ledger.CreateClaim(r.Context(), service.CreateClaimInput{
		Statement:     req.Statement,
		Domain:        req.Domain,
		Tags:          req.Tags,
		Importance:    req.Importance,
		InitialState:  domain.ClaimState(req.InitialState),
		Branch:        domain.Branch(req.Branch),
		Confidence:    req.Confidence,
		PriorityQueue: domain.PriorityQueue(req.PriorityQueue),
		Trigger:       req.Trigger,
		Agent:         middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, err, "failed to create claim")
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ClaimFilter{
		Domain:             q.Get("domain"),
		Tag:                q.Get("tag"),
		IncludeInvalidated: q.Get("include_invalidated") == "true",
		Limit:              queryInt(r, "limit", 100),
	}
	if s := q.Get("state"); s != "" {
		if !domain.ValidClaimState(s) {
			writeError(w, http.StatusBadRequest, "invalid state")
			return
		}
		state := domain.ClaimState(s)
		filter.State = &state
	}
	if b := q.Get("branch"); b != "" {
		if !domain.ValidBranch(b) {
			writeError(w, http.StatusBadRequest, "invalid branch")
			return
		}
		branch := domain.Branch(b)
		filter.Branch = &branch
	}

	claims, err := h.ledger.ListClaims(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "failed to list claims")
		return
	}
	if claims == nil {
		claims = []domain.KnowledgeClaim{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}

func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	claim, err := h.ledger.GetClaim(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get claim")
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (h *ClaimHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	entries, err := h.ledger.AuditTrail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get audit trail")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": id, "entries": entries})
}

type transitionRequest struct {
	ToState       string `json:"to_state"`
	Trigger       string `json:"trigger,omitempty"`
	Reason        string `json:"reason,omitempty"`
	NewConfidence *int   `json:"new_confidence,omitempty"`
	NewBranch     string `json:"new_branch,omitempty"`
}

func (h *ClaimHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}

	in := service.TransitionInput{
		Trigger:       req.Trigger,
		Agent:         middleware.UserIDFromContext(r.Context()),
		Reason:        req.Reason,
		NewConfidence: req.NewConfidence,
	}
	if req.NewBranch != "" {
		b := domain.Branch(req.NewBranch)
		in.NewBranch = &b
	}

	claim, err := h.ledger.Transition(r.Context(), id, domain.ClaimState(req.ToState), in)
	if err != nil {
		writeServiceError(w, err, "failed to transition claim")
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

type addDependencyRequest struct {
	DependsOnID string `json:"depends_on_id"`
	Type        string `json:"type"`
}

func (h *ClaimHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	var req addDependencyRequest
	if !decode(w, r, &req) {
		return
	}
	dependsOn, err := uuid.Parse(req.DependsOnID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid depends_on_id")
		return
	}
	typ := domain.DependencyType(req.Type)
	if typ == "" {
		typ = domain.DependencyDerivesFrom
	}

	dep, err := h.ledger.AddDependency(r.Context(), id, dependsOn, typ, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "failed to add dependency")
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

func (h *ClaimHandler) Dependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	deps, err := h.ledger.GetDependencies(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get dependencies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": id, "dependencies": nonNil(deps)})
}

func (h *ClaimHandler) Dependents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	deps, err := h.ledger.GetDependents(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get dependents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": id, "dependents": nonNil(deps)})
}

func nonNil(deps []domain.Dependency) []domain.Dependency {
	if deps == nil {
		return []domain.Dependency{}
	}
	return deps
}

type invalidateRequest struct {
	Reason  string `json:"reason"`
	Cascade *bool  `json:"cascade,omitempty"`
}

// Invalidate cascades unless the body sets cascade to false.
func (h *ClaimHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	var req invalidateRequest
	if !decode(w, r, &req) {
		return
	}
	cascade := req.Cascade == nil || *req.Cascade

	count, err := h.ledger.Invalidate(r.Context(), id, middleware.UserIDFromContext(r.Context()), req.Reason, cascade)
	if err != nil {
		writeServiceError(w, err, "failed to invalidate claim")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id":          id,
		"invalidated_count": count,
		"cascade":           cascade,
	})
}
