package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

// BranchAdapter answers from a model for the hypothesis or unverified
// branch. Whatever confidence the model reports is forced into the branch's
// band, so a model can never promote its own answer.
type BranchAdapter struct {
	branch    domain.Branch
	prompt    string
	completer domain.Completer
}

func NewBranchAdapter(b domain.Branch, c domain.Completer) (*BranchAdapter, error) {
	var prompt string
	switch b {
	case domain.BranchHypothesis:
		prompt = hypothesisBranchPrompt
	case domain.BranchUnverified:
		prompt = unverifiedBranchPrompt
	default:
		return nil, fmt.Errorf("branch %q cannot be served by a language model", b)
	}
	return &BranchAdapter{branch: b, prompt: prompt, completer: c}, nil
}

func (a *BranchAdapter) Branch() domain.Branch {
	return a.branch
}

type branchReply struct {
	Content    string       `json:"content"`
	Confidence int          `json:"confidence"`
	Sources    []sourceJSON `json:"sources"`
}

func (a *BranchAdapter) Query(ctx context.Context, text string) (*domain.BranchResult, error) {
	start := time.Now()
	raw, err := a.completer.Complete(ctx, fmt.Sprintf(a.prompt, text))
	if err != nil {
		return nil, fmt.Errorf("%s branch: %w", a.branch, err)
	}

	result := &domain.BranchResult{Branch: a.branch}
	var reply branchReply
	if err := json.Unmarshal([]byte(jsonObject(raw)), &reply); err != nil {
		// Plain prose is accepted at the bottom of the band.
		result.Content = stripFences(raw)
		result.Confidence, _ = a.branch.ConfidenceRange()
	} else {
		result.Content = strings.TrimSpace(reply.Content)
		result.Confidence = a.branch.Clamp(reply.Confidence)
		result.Sources = toSources(reply.Sources)
	}
	result.Latency = time.Since(start)
	return result, nil
}
