package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"go.uber.org/zap"
)

// RequiredConfidence is the only effective confidence the gate approves.
const RequiredConfidence = 100

// ConsistencyChecker decides whether content conflicts with unretracted
// knowledge. Contradicts reports a conflict with a short explanation.
type ConsistencyChecker interface {
	Check(ctx context.Context, content string) (contradicts bool, details string, err error)
}

// ValidateInput is everything the gate looks at for one proposal.
type ValidateInput struct {
	Content string
	Sources []domain.Source
	// Deliberation enables the consensus and challenge steps when set.
	Deliberation *domain.DeliberationResult
	// BaseConfidence is used when there are no deliberation responses.
	// Nil means 100.
	BaseConfidence *int
	RequireAnchor  bool
}

// ValidationGate runs the ordered approval checks. It is stateless apart from
// the optional checker and safe for concurrent use.
type ValidationGate struct {
	checker ConsistencyChecker
	logger  *zap.Logger
}

func NewValidationGate(logger *zap.Logger) *ValidationGate {
	return &ValidationGate{logger: logger}
}

func (g *ValidationGate) SetConsistencyChecker(c ConsistencyChecker) {
	g.checker = c
}

type gateRun struct {
	trace domain.ValidationTrace
	start time.Time
}

func (r *gateRun) record(component, action string, result domain.StepResult, details string, began time.Time) {
	r.trace.Steps = append(r.trace.Steps, domain.TraceStep{
		StepNumber: len(r.trace.Steps) + 1,
		Component:  component,
		Action:     action,
		Result:     result,
		Details:    details,
		DurationMs: time.Since(began).Milliseconds(),
	})
}

func (r *gateRun) reject(reason domain.RejectionReason, sources []domain.Source) *domain.ValidationResult {
	r.trace.FinalDecision = domain.DecisionRejected
	r.trace.TotalDurationMs = time.Since(r.start).Milliseconds()
	return &domain.ValidationResult{
		IsValid:         false,
		Confidence:      0,
		Sources:         sources,
		Trace:           r.trace,
		RejectionReason: &reason,
	}
}

// Validate stops at the first failing step. Every executed step lands on the
// trace whatever its result.
func (g *ValidationGate) Validate(ctx context.Context, in ValidateInput) *domain.ValidationResult {
	run := &gateRun{start: time.Now()}
	sources := gatherSources(in)

	// 1. Source anchoring
	began := time.Now()
	switch {
	case len(sources) > 0:
		run.record("source_anchor", "attach sources", domain.StepPass, fmt.Sprintf("%d source(s) attached", len(sources)), began)
	case !in.RequireAnchor:
		run.record("source_anchor", "attach sources", domain.StepWarn, "no sources; anchor requirement disabled", began)
	default:
		run.record("source_anchor", "attach sources", domain.StepFail, "no traceable source for content", began)
		return run.reject(domain.RejectNoSource, sources)
	}

	// 2. Memory consistency
	began = time.Now()
	if g.checker == nil {
		run.record("memory_consistency", "check against ledger", domain.StepPass, "no consistency checker configured", began)
	} else {
		contradicts, details, err := g.checker.Check(ctx, in.Content)
		if err != nil {
			g.logger.Warn("consistency check failed", zap.Error(err))
			run.record("memory_consistency", "check against ledger", domain.StepFail, "checker error: "+err.Error(), began)
			return run.reject(domain.RejectInternalError, sources)
		}
		if contradicts {
			run.record("memory_consistency", "check against ledger", domain.StepFail, details, began)
			return run.reject(domain.RejectContradictsMemory, sources)
		}
		run.record("memory_consistency", "check against ledger", domain.StepPass, details, began)
	}

	if d := in.Deliberation; d != nil {
		// 3. Consensus
		began = time.Now()
		label := d.Verdict.Label
		if label != domain.VerdictConsensus && label != domain.VerdictMajority {
			run.record("consensus", "check verdict", domain.StepFail, "verdict is "+string(label), began)
			return run.reject(domain.RejectNoConsensus, sources)
		}
		run.record("consensus", "check verdict", domain.StepPass, "verdict is "+string(label), began)

		// 4. Challenge resolution
		began = time.Now()
		open := 0
		for _, c := range d.Challenges {
			if c.Severity == domain.SeverityCritical && !c.Resolved {
				open++
			}
		}
		if open > 0 {
			run.record("critique", "check challenges", domain.StepFail, fmt.Sprintf("%d unresolved critical challenge(s)", open), began)
			return run.reject(domain.RejectFailedCritique, sources)
		}
		run.record("critique", "check challenges", domain.StepPass, fmt.Sprintf("%d challenge(s), none critical and open", len(d.Challenges)), began)
	}

	// 5. Confidence threshold
	began = time.Now()
	effective := effectiveConfidence(in)
	if effective != RequiredConfidence {
		run.record("confidence", "check threshold", domain.StepFail, fmt.Sprintf("effective confidence %.1f, need %d", effective, RequiredConfidence), began)
		return run.reject(domain.RejectInsufficientConfidence, sources)
	}
	run.record("confidence", "check threshold", domain.StepPass, fmt.Sprintf("effective confidence %d", RequiredConfidence), began)

	run.trace.FinalDecision = domain.DecisionApproved
	run.trace.TotalDurationMs = time.Since(run.start).Milliseconds()
	if sources == nil {
		sources = []domain.Source{}
	}
	return &domain.ValidationResult{
		IsValid:    true,
		Confidence: RequiredConfidence,
		Sources:    sources,
		Trace:      run.trace,
	}
}

func effectiveConfidence(in ValidateInput) float64 {
	if d := in.Deliberation; d != nil && len(d.Responses) > 0 {
		var total float64
		for _, r := range d.Responses {
			total += float64(r.Confidence)
		}
		return total / float64(len(d.Responses))
	}
	if in.BaseConfidence != nil {
		return float64(*in.BaseConfidence)
	}
	return RequiredConfidence
}

// gatherSources merges explicit and deliberation sources, dropping exact
// duplicates while keeping first-seen order.
func gatherSources(in ValidateInput) []domain.Source {
	all := append([]domain.Source(nil), in.Sources...)
	if in.Deliberation != nil {
		all = append(all, in.Deliberation.Sources()...)
	}
	seen := make(map[domain.Source]bool, len(all))
	var out []domain.Source
	for _, s := range all {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
