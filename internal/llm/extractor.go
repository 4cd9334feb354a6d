package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

// FactExtractor is the model-backed extraction path.
type FactExtractor struct {
	completer domain.Completer
}

func NewFactExtractor(c domain.Completer) *FactExtractor {
	return &FactExtractor{completer: c}
}

func (e *FactExtractor) ExtractFacts(ctx context.Context, text string) ([]domain.ExtractedFact, error) {
	raw, err := e.completer.Complete(ctx, fmt.Sprintf(factExtractionPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}

	var facts []domain.ExtractedFact
	if err := json.Unmarshal([]byte(jsonArray(raw)), &facts); err != nil {
		return nil, fmt.Errorf("parse extraction result: %w (raw: %s)", err, raw)
	}

	out := facts[:0]
	for _, f := range facts {
		f.Type = domain.FactType(strings.ToLower(strings.TrimSpace(string(f.Type))))
		if !domain.ValidFactType(string(f.Type)) {
			continue
		}
		f.Confidence = clamp(f.Confidence, 0, 100)
		out = append(out, f)
	}
	return out, nil
}
