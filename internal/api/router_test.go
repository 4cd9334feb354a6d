package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	mw "github.com/Harshitk-cp/veritas/internal/api/middleware"
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testApp struct {
	*App
	services *Services
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("EMBEDDING_PROVIDER", "mock")
	t.Setenv("REDIS_URL", "")
	t.Setenv("RATE_LIMIT_RPS", "10000")
	t.Setenv("RATE_LIMIT_BURST", "10000")

	b := NewMemoryBackend()
	svcs, err := BuildServices(context.Background(), b, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(svcs.Close)

	return &testApp{App: NewApp(b, svcs, zap.NewNop()), services: svcs}
}

type caller struct {
	user  string
	level string
}

var (
	alice = caller{user: "alice"}
	bob   = caller{user: "bob", level: "verified"}
	admin = caller{user: "root", level: "admin"}
)

func (a *testApp) do(t *testing.T, who caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who.user != "" {
		req.Header.Set(mw.UserIDHeader, who.user)
	}
	if who.level != "" {
		req.Header.Set(mw.UserLevelHeader, who.level)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, caller{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "memory", decodeBody[map[string]string](t, rec)["store"])

	rec = app.do(t, caller{}, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 3, m["council_members"])
	assert.EqualValues(t, 0, m["active_streams"])
	assert.Len(t, m["branches"], 3)
}

func TestV1RequiresIdentity(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, caller{}, http.MethodGet, "/v1/claims", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, caller{user: "x", level: "wizard"}, http.MethodGet, "/v1/claims", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimLifecycle(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, alice, http.MethodPost, "/v1/claims", map[string]any{"statement": "Water boils at 100C at sea level", "confidence": 60})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	root := decodeBody[domain.KnowledgeClaim](t, rec)
	assert.Equal(t, domain.BranchHypothesis, root.Branch)
	assert.Equal(t, domain.StatePendingProof, root.State)

	rec = app.do(t, alice, http.MethodPost, "/v1/claims", map[string]any{"statement": "Pasta water boils at 100C"})
	require.Equal(t, http.StatusCreated, rec.Code)
	child := decodeBody[domain.KnowledgeClaim](t, rec)

	rec = app.do(t, alice, http.MethodPost, "/v1/claims/"+child.ID.String()+"/dependencies", map[string]any{"depends_on_id": root.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dep := decodeBody[domain.Dependency](t, rec)
	assert.Equal(t, domain.DependencyDerivesFrom, dep.Type)

	rec = app.do(t, alice, http.MethodGet, "/v1/claims/"+root.ID.String()+"/dependents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string]any](t, rec)["dependents"], 1)

	rec = app.do(t, alice, http.MethodPost, "/v1/claims/"+root.ID.String()+"/transition", map[string]any{"to_state": "verified", "reason": "measured"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StateVerified, decodeBody[domain.KnowledgeClaim](t, rec).State)

	rec = app.do(t, alice, http.MethodPost, "/v1/claims/"+root.ID.String()+"/transition", map[string]any{"to_state": "watching"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, alice, http.MethodPost, "/v1/claims/"+root.ID.String()+"/invalidate", map[string]any{"reason": "altitude matters"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, rec)["invalidated_count"])

	rec = app.do(t, alice, http.MethodGet, "/v1/claims", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody[map[string]any](t, rec)["count"])

	rec = app.do(t, alice, http.MethodGet, "/v1/claims?include_invalidated=true", nil)
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, rec)["count"])

	rec = app.do(t, alice, http.MethodGet, "/v1/claims/"+child.ID.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[map[string]any](t, rec)["entries"])
}

func TestClaimErrors(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty statement", http.MethodPost, "/v1/claims", map[string]any{"statement": " "}, http.StatusBadRequest},
		{"high trust below 100", http.MethodPost, "/v1/claims", map[string]any{"statement": "x", "branch": "high_trust", "confidence": 90}, http.StatusBadRequest},
		{"bad queue", http.MethodPost, "/v1/claims", map[string]any{"statement": "x", "priority_queue": "urgent"}, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/claims/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown claim", http.MethodGet, "/v1/claims/6f1c1c9e-8a43-4d39-9b0e-0c8b7d1f2a11", nil, http.StatusNotFound},
		{"bad state filter", http.MethodGet, "/v1/claims?state=gone", nil, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/v1/claims", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, alice, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCheckpointOwnershipAndRollback(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, alice, http.MethodPost, "/v1/claims", map[string]any{"statement": "Original statement", "confidence": 60})
	require.Equal(t, http.StatusCreated, rec.Code)
	claim := decodeBody[domain.KnowledgeClaim](t, rec)

	rec = app.do(t, alice, http.MethodPost, "/v1/checkpoints", map[string]any{"label": "before", "claim_ids": []string{claim.ID.String()}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cp := decodeBody[domain.Checkpoint](t, rec)
	assert.Equal(t, "alice", cp.OwnerID)

	rec = app.do(t, alice, http.MethodPost, "/v1/claims/"+claim.ID.String()+"/transition", map[string]any{"to_state": "watching", "new_confidence": 70})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, alice, http.MethodPost, "/v1/claims", map[string]any{"statement": "Created after the checkpoint"})
	require.Equal(t, http.StatusCreated, rec.Code)
	later := decodeBody[domain.KnowledgeClaim](t, rec)

	rec = app.do(t, bob, http.MethodPost, "/v1/checkpoints/"+cp.ID.String()+"/rollback", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(t, bob, http.MethodDelete, "/v1/checkpoints/"+cp.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, bob, http.MethodGet, "/v1/checkpoints", nil)
	assert.EqualValues(t, 0, decodeBody[map[string]any](t, rec)["count"])
	rec = app.do(t, alice, http.MethodGet, "/v1/checkpoints", nil)
	assert.EqualValues(t, 1, decodeBody[map[string]any](t, rec)["count"])

	rec = app.do(t, alice, http.MethodPost, "/v1/checkpoints/"+cp.ID.String()+"/rollback", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[domain.RollbackResult](t, rec)
	assert.Equal(t, 1, result.RestoredCount)
	assert.Equal(t, 1, result.InvalidatedCount)

	rec = app.do(t, alice, http.MethodGet, "/v1/claims/"+claim.ID.String(), nil)
	restored := decodeBody[domain.KnowledgeClaim](t, rec)
	assert.Equal(t, domain.StatePendingProof, restored.State)
	assert.Equal(t, 60, restored.Confidence)

	rec = app.do(t, alice, http.MethodGet, "/v1/claims/"+later.ID.String(), nil)
	assert.Equal(t, domain.StateDeprecated, decodeBody[domain.KnowledgeClaim](t, rec).State)

	rec = app.do(t, alice, http.MethodDelete, "/v1/checkpoints/"+cp.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, alice, http.MethodGet, "/v1/checkpoints/"+cp.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFactReview(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, alice, http.MethodPost, "/v1/facts/extract", map[string]any{"text": "My name is Alice. I love hiking."})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	extracted := decodeBody[struct {
		Facts []domain.Fact `json:"facts"`
	}](t, rec)
	require.Len(t, extracted.Facts, 2)

	var identity domain.Fact
	for _, f := range extracted.Facts {
		if f.Type == domain.FactIdentity {
			identity = f
		}
	}
	require.Equal(t, domain.TrustPending, identity.TrustState)

	rec = app.do(t, alice, http.MethodGet, "/v1/facts/pending", nil)
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, rec)["count"])

	rec = app.do(t, alice, http.MethodGet, "/v1/facts/pending?all=true", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, bob, http.MethodPost, "/v1/facts/"+identity.ID.String()+"/verify", map[string]any{"approve": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, admin, http.MethodPost, "/v1/facts/"+identity.ID.String()+"/verify", map[string]any{"approve": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, admin, http.MethodPost, "/v1/facts/"+identity.ID.String()+"/verify", map[string]any{"approve": false})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, admin, http.MethodPost, "/v1/facts/6f1c1c9e-8a43-4d39-9b0e-0c8b7d1f2a11/verify", map[string]any{"approve": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, alice, http.MethodGet, "/v1/claims/"+identity.ID.String(), nil)
	claim := decodeBody[domain.KnowledgeClaim](t, rec)
	assert.Equal(t, domain.BranchHighTrust, claim.Branch)
	assert.Equal(t, 100, claim.Confidence)
	assert.Equal(t, domain.StateVerified, claim.State)

	rec = app.do(t, alice, http.MethodGet, "/v1/facts/relevant?q=hiking", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	relevant := decodeBody[struct {
		Facts []domain.FactWithScore `json:"facts"`
	}](t, rec)
	require.NotEmpty(t, relevant.Facts)
	assert.Equal(t, identity.ID, relevant.Facts[0].ID)

	rec = app.do(t, alice, http.MethodGet, "/v1/facts/relevant", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessQuery_DoesNotKnowWithoutSources(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, alice, http.MethodPost, "/v1/query", map[string]any{"query": "What is the capital of France?", "options": map[string]any{"include_trace": true}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[domain.QueryResponse](t, rec)
	assert.NotEmpty(t, resp.RequestID)
	assert.Nil(t, resp.Answer)
	require.NotNil(t, resp.RejectionReason)
	assert.Equal(t, 0, resp.Confidence)
	assert.NotNil(t, resp.Sources)
	assert.True(t, strings.HasPrefix(resp.Message, "I do not know, because "))
	require.NotNil(t, resp.Trace)
	assert.Equal(t, domain.DecisionRejected, resp.Trace.FinalDecision)
}

type sseEvent struct {
	id    int
	event string
	data  domain.StreamEvent
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			key, value, _ := strings.Cut(line, ": ")
			switch key {
			case "id":
				n, err := strconv.Atoi(value)
				require.NoError(t, err)
				ev.id = n
			case "event":
				ev.event = value
			case "data":
				require.NoError(t, json.Unmarshal([]byte(value), &ev.data))
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestStreamQuery_ServerSentEvents(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, alice, http.MethodPost, "/v1/query/stream", map[string]any{"query": "hello there"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)

	var chunks []string
	for i, ev := range events {
		assert.Equal(t, i+1, ev.id)
		assert.Equal(t, string(ev.data.Type), ev.event)
		if ev.data.Type == domain.EventAnswerChunk {
			chunks = append(chunks, ev.data.AnswerChunk)
		}
	}
	assert.Equal(t, domain.EventThinking, events[0].data.Type)
	last := events[len(events)-1]
	require.Equal(t, domain.EventFinal, last.data.Type)
	require.NotNil(t, last.data.Final)
	require.NotNil(t, last.data.Final.Answer)
	assert.Equal(t, *last.data.Final.Answer, strings.Join(chunks, ""))
	assert.Equal(t, 80, last.data.Final.Confidence)
	assert.Eventually(t, func() bool { return app.services.Hub.Active() == 0 }, time.Second, 10*time.Millisecond)
}
