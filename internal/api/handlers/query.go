package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Harshitk-cp/veritas/internal/api/middleware"
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/service"
	"go.uber.org/zap"
)

type QueryHandler struct {
	orch   *service.Orchestrator
	logger *zap.Logger
}

func NewQueryHandler(orch *service.Orchestrator, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{orch: orch, logger: logger}
}

type queryRequest struct {
	Query     string              `json:"query"`
	SessionID string              `json:"session_id,omitempty"`
	Options   domain.QueryOptions `json:"options"`
}

// request builds the orchestrator input. Identity and verification level
// always come from the headers, never from the body.
func (h *QueryHandler) request(w http.ResponseWriter, r *http.Request) (domain.QueryRequest, bool) {
	var body queryRequest
	if !decode(w, r, &body) {
		return domain.QueryRequest{}, false
	}
	opts := body.Options
	opts.UserLevel = middleware.UserLevelFromContext(r.Context())
	return domain.QueryRequest{
		Query:     body.Query,
		UserID:    middleware.UserIDFromContext(r.Context()),
		SessionID: body.SessionID,
		Options:   opts,
	}, true
}

// Process answers synchronously. "I do not know" is a successful response,
// so this handler only fails on malformed input.
func (h *QueryHandler) Process(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.orch.ProcessQuery(r.Context(), req))
}

// Stream serves the query's progress as Server-Sent Events. Each event's id
// is its sequence number and its event name is its type.
func (h *QueryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	s, err := h.orch.StreamQuery(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "failed to start stream")
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for ev := range s.Events() {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode stream event", zap.String("request_id", ev.RequestID), zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, payload); err != nil {
			// The client left; the producer stops once the request context ends.
			h.logger.Debug("stream client disconnected", zap.String("request_id", s.ID()), zap.Error(err))
			return
		}
		if err := rc.Flush(); err != nil {
			h.logger.Debug("stream flush failed", zap.String("request_id", s.ID()), zap.Error(err))
		}
	}
}
