package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

// CouncilMember is one deliberation participant backed by a completion
// client and a reasoning style.
type CouncilMember struct {
	name      string
	preamble  string
	completer domain.Completer
}

func NewCouncilMember(name, style string, c domain.Completer) (*CouncilMember, error) {
	preamble, ok := stylePreambles[style]
	if !ok {
		return nil, fmt.Errorf("unknown council style: %s", style)
	}
	return &CouncilMember{name: name, preamble: preamble, completer: c}, nil
}

func (m *CouncilMember) Name() string {
	return m.name
}

type memberReply struct {
	Content    string       `json:"content"`
	Confidence int          `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	Sources    []sourceJSON `json:"sources"`
}

// Query asks the model for a structured opinion. Self-reported confidence is
// clamped to 0..100.
func (m *CouncilMember) Query(ctx context.Context, prompt string) (*domain.MemberAnswer, error) {
	raw, err := m.completer.Complete(ctx, fmt.Sprintf(memberPrompt, m.preamble, prompt))
	if err != nil {
		return nil, fmt.Errorf("council member %s: %w", m.name, err)
	}
	return parseMemberAnswer(raw)
}

func parseMemberAnswer(raw string) (*domain.MemberAnswer, error) {
	body := jsonObject(raw)
	var reply memberReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return nil, fmt.Errorf("parse member answer: %w (raw: %s)", err, raw)
	}
	return &domain.MemberAnswer{
		Content:    strings.TrimSpace(reply.Content),
		Confidence: clamp(reply.Confidence, 0, 100),
		Reasoning:  strings.TrimSpace(reply.Reasoning),
		Sources:    toSources(reply.Sources),
	}, nil
}
