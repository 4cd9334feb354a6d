package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/stream"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBranchTimeout = 20 * time.Second
	// ConversationalConfidence is reported for replies that bypass the gate.
	ConversationalConfidence = 80
	answerChunkWords         = 8
)

// conversationalFallback answers small talk when no branch produced a reply.
const conversationalFallback = "Noted."

// Orchestrator runs one query end to end: route, branch fan-out, optional
// deliberation, validation and the ledger write.
type Orchestrator struct {
	router        *Router
	branches      *BranchRegistry
	council       *CouncilRegistry
	deliberation  *DeliberationService
	gate          *ValidationGate
	ledger        *LedgerService
	facts         *FactService
	hub           *stream.Hub
	branchTimeout time.Duration
	logger        *zap.Logger

	entropyMu sync.Mutex
	entropy   io.Reader
}

func NewOrchestrator(
	router *Router,
	branches *BranchRegistry,
	council *CouncilRegistry,
	deliberation *DeliberationService,
	gate *ValidationGate,
	ledger *LedgerService,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		router:        router,
		branches:      branches,
		council:       council,
		deliberation:  deliberation,
		gate:          gate,
		ledger:        ledger,
		hub:           stream.NewHub(logger),
		branchTimeout: DefaultBranchTimeout,
		logger:        logger,
		entropy:       ulid.Monotonic(rand.Reader, 0),
	}
}

// SetFactService enables fact extraction for conversational input.
func (o *Orchestrator) SetFactService(fs *FactService) {
	o.facts = fs
}

func (o *Orchestrator) SetHub(h *stream.Hub) {
	o.hub = h
}

// SetBranchTimeout bounds each branch call. Zero disables the bound.
func (o *Orchestrator) SetBranchTimeout(d time.Duration) {
	o.branchTimeout = d
}

func (o *Orchestrator) newRequestID() string {
	o.entropyMu.Lock()
	defer o.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(timeNow()), o.entropy).String()
}

type progressFunc func(phase, text string)

func noProgress(string, string) {}

// ProcessQuery never fails: every outcome, including internal faults and
// cancellation, is a QueryResponse.
func (o *Orchestrator) ProcessQuery(ctx context.Context, req domain.QueryRequest) *domain.QueryResponse {
	return o.run(ctx, req, o.newRequestID(), noProgress)
}

// StreamQuery starts processing in the background and returns the stream
// it reports on. The stream ends with a final or an error event and is then
// closed by the producer.
func (o *Orchestrator) StreamQuery(ctx context.Context, req domain.QueryRequest) (*stream.Stream, error) {
	requestID := o.newRequestID()
	s, err := o.hub.Open(requestID)
	if err != nil {
		return nil, err
	}

	go func() {
		defer s.Close()

		progress := func(phase, text string) {
			_ = s.Publish(ctx, domain.StreamEvent{
				Type:     domain.EventThinking,
				Thinking: &domain.ThinkingStep{Phase: phase, Text: text},
			})
		}
		resp := o.run(ctx, req, requestID, progress)

		if r := resp.RejectionReason; r != nil && (*r == domain.RejectInternalError || *r == domain.RejectTimeout) {
			_ = s.Publish(ctx, domain.StreamEvent{Type: domain.EventError, Error: resp.Message})
			return
		}
		if resp.Answer != nil {
			for _, chunk := range chunkAnswer(*resp.Answer, answerChunkWords) {
				if err := s.Publish(ctx, domain.StreamEvent{Type: domain.EventAnswerChunk, AnswerChunk: chunk}); err != nil {
					return
				}
			}
		}
		_ = s.Publish(ctx, domain.StreamEvent{Type: domain.EventFinal, Final: resp})
	}()

	return s, nil
}

func (o *Orchestrator) run(ctx context.Context, req domain.QueryRequest, requestID string, progress progressFunc) (resp *domain.QueryResponse) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("query processing panicked",
				zap.String("request_id", requestID),
				zap.Any("panic", r))
			resp = domain.DoNotKnow(requestID, domain.RejectInternalError)
		}
	}()

	start := time.Now()
	out, err := o.process(ctx, req, requestID, progress)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			o.logger.Warn("query timed out", zap.String("request_id", requestID), zap.Error(err))
			return domain.DoNotKnow(requestID, domain.RejectTimeout)
		}
		o.logger.Error("query processing failed", zap.String("request_id", requestID), zap.Error(err))
		return domain.DoNotKnow(requestID, domain.RejectInternalError)
	}

	o.logger.Info("query processed",
		zap.String("request_id", requestID),
		zap.String("class", string(out.Class)),
		zap.Bool("verified", out.IsVerified),
		zap.Int("confidence", out.Confidence),
		zap.Duration("duration", time.Since(start)))
	return out
}

func (o *Orchestrator) process(ctx context.Context, req domain.QueryRequest, requestID string, progress progressFunc) (*domain.QueryResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.DoNotKnow(requestID, domain.RejectNoSource), nil
	}
	if req.UserID != "" {
		ctx = WithUserID(ctx, req.UserID)
	}

	route := o.router.Route(query, req.Options)
	progress("route", fmt.Sprintf("classified as %s (%s)", route.Class, route.Reason))

	if route.Class == domain.ClassConversational {
		return o.converse(ctx, req, query, requestID, route, progress)
	}

	results, err := o.queryBranches(ctx, query, route.Branches, progress)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for b, r := range results {
		if contaminated(b, r) {
			progress("branches", fmt.Sprintf("%s branch returned foreign content", b))
			o.logger.Warn("branch contamination detected",
				zap.String("request_id", requestID),
				zap.String("branch", string(b)),
				zap.String("reported_branch", string(r.Branch)),
				zap.Int("confidence", r.Confidence))
			resp := domain.DoNotKnow(requestID, domain.RejectContamination)
			resp.Class = route.Class
			return resp, nil
		}
	}

	// The most trusted branch with something to say leads.
	var primary *domain.BranchResult
	for _, b := range route.Branches {
		if r := results[b]; !r.Empty() {
			primary = r
			break
		}
	}

	var content string
	var sources []domain.Source
	var base *int
	if !primary.Empty() {
		content = primary.Content
		sources = primary.Sources
		conf := primary.Confidence
		base = &conf
	}

	var delib *domain.DeliberationResult
	if (route.Deliberate || primary.Empty()) && o.council.Len() > 0 {
		progress("deliberate", fmt.Sprintf("consulting %d council member(s)", o.council.Len()))
		delib = o.deliberation.Deliberate(ctx, councilPrompt(query, route.Branches, results), o.council.Members())
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress("verdict", fmt.Sprintf("%s: %s", delib.Verdict.Label, delib.Verdict.Reasoning))
		if len(delib.Responses) > 0 {
			content = delib.Answer()
			base = nil
		}
	}

	if content == "" && delib == nil {
		progress("validate", "no branch produced content")
		resp := domain.DoNotKnow(requestID, domain.RejectNoSource)
		resp.Class = route.Class
		return resp, nil
	}

	result := o.gate.Validate(ctx, ValidateInput{
		Content:        content,
		Sources:        sources,
		Deliberation:   delib,
		BaseConfidence: base,
		RequireAnchor:  req.Options.AnchorRequired(),
	})
	progress("validate", string(result.Trace.FinalDecision))

	var resp *domain.QueryResponse
	if !result.IsValid {
		resp = domain.DoNotKnow(requestID, *result.RejectionReason)
	} else {
		answer := content
		resp = &domain.QueryResponse{
			RequestID:  requestID,
			Answer:     &answer,
			IsVerified: true,
			Confidence: result.Confidence,
			Sources:    result.Sources,
			Branch:     domain.BranchHighTrust,
		}
		resp.ClaimID = o.record(ctx, requestID, answer, route, result.Sources, req.Options)
	}
	resp.Class = route.Class
	resp.Deliberation = delib
	if delib != nil {
		v := delib.Verdict
		resp.Verdict = &v
	}
	if req.Options.IncludeTrace {
		trace := result.Trace
		resp.Trace = &trace
	}
	return resp, nil
}

// converse handles small talk and statements about the user. The gate is
// skipped and the reply is reported at ConversationalConfidence.
func (o *Orchestrator) converse(ctx context.Context, req domain.QueryRequest, query, requestID string, route domain.Route, progress progressFunc) (*domain.QueryResponse, error) {
	progress("validate", "conversational query; validation bypassed")

	if o.facts != nil && req.UserID != "" {
		facts, err := o.facts.ExtractAndStore(ctx, req.UserID, query, req.Options.UserLevel)
		if err != nil {
			o.logger.Warn("fact extraction failed", zap.String("request_id", requestID), zap.Error(err))
		} else if len(facts) > 0 {
			progress("facts", fmt.Sprintf("stored %d fact(s)", len(facts)))
		}
	}

	answer := conversationalFallback
	results, err := o.queryBranches(ctx, query, route.Branches, progress)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r := results[route.Branches[0]]; !r.Empty() {
		answer = r.Content
	}

	resp := &domain.QueryResponse{
		RequestID:  requestID,
		Answer:     &answer,
		IsVerified: true,
		Confidence: ConversationalConfidence,
		Sources:    []domain.Source{},
		Branch:     route.Branches[0],
		Class:      route.Class,
	}
	if req.Options.IncludeTrace {
		resp.Trace = &domain.ValidationTrace{
			Steps: []domain.TraceStep{{
				StepNumber: 1,
				Component:  "router",
				Action:     "bypass validation",
				Result:     domain.StepPass,
				Details:    "conversational query auto-approved",
			}},
			FinalDecision: domain.DecisionApproved,
		}
	}
	return resp, nil
}

// queryBranches fans out to the routed branches. A missing, failing or
// timed-out branch is absent from the result. A panicking adapter is an
// internal fault and fails the whole query.
func (o *Orchestrator) queryBranches(ctx context.Context, query string, branches []domain.Branch, progress progressFunc) (map[domain.Branch]*domain.BranchResult, error) {
	var mu sync.Mutex
	results := make(map[domain.Branch]*domain.BranchResult, len(branches))
	var fault error

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range branches {
		adapter, ok := o.branches.Get(b)
		if !ok {
			o.logger.Warn("no adapter registered for branch", zap.String("branch", string(b)))
			continue
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("branch adapter panicked", zap.String("branch", string(b)), zap.Any("panic", r))
					mu.Lock()
					fault = fmt.Errorf("branch %s panicked: %v", b, r)
					mu.Unlock()
				}
			}()

			bctx := gctx
			if o.branchTimeout > 0 {
				var cancel context.CancelFunc
				bctx, cancel = context.WithTimeout(gctx, o.branchTimeout)
				defer cancel()
			}

			start := time.Now()
			r, err := adapter.Query(bctx, query)
			if err == nil && bctx.Err() != nil {
				err = bctx.Err()
			}
			if err != nil {
				o.logger.Warn("branch query failed", zap.String("branch", string(b)), zap.Error(err))
				return nil
			}
			if r == nil {
				return nil
			}
			if r.Latency == 0 {
				r.Latency = time.Since(start)
			}
			mu.Lock()
			results[b] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if fault != nil {
		return nil, fault
	}

	for _, b := range branches {
		if r, ok := results[b]; ok && !r.Empty() {
			progress("branches", fmt.Sprintf("%s branch answered at confidence %d", b, r.Confidence))
		} else {
			progress("branches", fmt.Sprintf("%s branch had nothing", b))
		}
	}
	return results, nil
}

// contaminated reports a result that claims another branch or carries a
// confidence outside its own branch's band.
func contaminated(b domain.Branch, r *domain.BranchResult) bool {
	if r == nil || r.Empty() {
		return false
	}
	if r.Branch != b {
		return true
	}
	min, max := b.ConfidenceRange()
	return r.Confidence < min || r.Confidence > max
}

func councilPrompt(query string, branches []domain.Branch, results map[domain.Branch]*domain.BranchResult) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n")
	for _, b := range branches {
		r := results[b]
		if r.Empty() {
			continue
		}
		fmt.Fprintf(&sb, "\n[%s branch, confidence %d]\n%s\n", b, r.Confidence, r.Content)
		for _, s := range r.Sources {
			fmt.Fprintf(&sb, "- source: %s %s\n", s.Kind, s.Ref)
		}
	}
	return sb.String()
}

// record writes an approved answer to the ledger. Failures are logged and
// never change the response.
func (o *Orchestrator) record(ctx context.Context, requestID, answer string, route domain.Route, sources []domain.Source, opts domain.QueryOptions) *uuid.UUID {
	ctx = context.WithoutCancel(ctx)
	conf := 100
	claim, err := o.ledger.CreateClaim(ctx, CreateClaimInput{
		Statement:  answer,
		Domain:     opts.Domain,
		Tags:       []string{"answer", string(route.Class)},
		Branch:     domain.BranchHighTrust,
		Confidence: &conf,
		Trigger:    "query:" + requestID,
		Agent:      "orchestrator",
	})
	if err != nil {
		o.logger.Warn("failed to record verified answer", zap.String("request_id", requestID), zap.Error(err))
		return nil
	}

	for _, s := range sources {
		if s.ClaimID == "" {
			continue
		}
		parent, err := uuid.Parse(s.ClaimID)
		if err != nil {
			o.logger.Warn("source carries malformed claim id", zap.String("claim_id", s.ClaimID))
			continue
		}
		if _, err := o.ledger.AddDependency(ctx, claim.ID, parent, domain.DependencyDerivesFrom, "orchestrator"); err != nil {
			o.logger.Warn("failed to link answer to source claim",
				zap.String("request_id", requestID),
				zap.String("claim_id", claim.ID.String()),
				zap.String("source_claim_id", s.ClaimID),
				zap.Error(err))
		}
	}
	return &claim.ID
}

func chunkAnswer(answer string, words int) []string {
	fields := strings.Fields(answer)
	var out []string
	for i := 0; i < len(fields); i += words {
		end := i + words
		if end > len(fields) {
			end = len(fields)
		}
		chunk := strings.Join(fields[i:end], " ")
		if end < len(fields) {
			chunk += " "
		}
		out = append(out, chunk)
	}
	return out
}
