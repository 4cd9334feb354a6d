package domain

import (
	"strings"
	"time"
)

// Source is a traceable reference backing a piece of content.
type Source struct {
	Kind    string `json:"kind"`
	Ref     string `json:"ref"`
	Title   string `json:"title,omitempty"`
	ClaimID string `json:"claim_id,omitempty"`
}

const (
	SourceKindLedger   = "ledger"
	SourceKindDocument = "document"
	SourceKindURL      = "url"
)

// BranchResult is what a knowledge branch returns for one query.
type BranchResult struct {
	Branch     Branch        `json:"branch"`
	Content    string        `json:"content"`
	Confidence int           `json:"confidence"`
	Sources    []Source      `json:"sources,omitempty"`
	Latency    time.Duration `json:"latency"`
}

func (r *BranchResult) Empty() bool {
	return r == nil || r.Content == ""
}

// MemberAnswer is the raw reply of a council member adapter.
type MemberAnswer struct {
	Content    string   `json:"content"`
	Confidence int      `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Sources    []Source `json:"sources,omitempty"`
}

// CouncilResponse is one member's opinion during a single deliberation.
type CouncilResponse struct {
	Member     string        `json:"member"`
	Content    string        `json:"content"`
	Confidence int           `json:"confidence"`
	Reasoning  string        `json:"reasoning,omitempty"`
	Sources    []Source      `json:"sources,omitempty"`
	Latency    time.Duration `json:"latency"`
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Challenge is a structured objection to one member's response.
type Challenge struct {
	TargetMember string   `json:"target_member"`
	Text         string   `json:"text"`
	Severity     Severity `json:"severity"`
	Resolved     bool     `json:"resolved"`
}

type VerdictLabel string

const (
	VerdictConsensus VerdictLabel = "consensus"
	VerdictMajority  VerdictLabel = "majority"
	VerdictSplit     VerdictLabel = "split"
	VerdictDeadlock  VerdictLabel = "deadlock"
)

// Verdict is the aggregate classification of council agreement.
type Verdict struct {
	Label      VerdictLabel   `json:"label"`
	VoteCounts map[string]int `json:"vote_counts"`
	Reasoning  string         `json:"reasoning"`
	Dissent    []string       `json:"dissent,omitempty"`
}

// DeliberationResult bundles everything a deliberation produced.
type DeliberationResult struct {
	Verdict           Verdict           `json:"verdict"`
	Proposal          string            `json:"proposal"`
	Responses         []CouncilResponse `json:"responses"`
	Challenges        []Challenge       `json:"challenges,omitempty"`
	AverageConfidence float64           `json:"average_confidence"`
}

// Sources collects every source cited by any member.
func (d *DeliberationResult) Sources() []Source {
	var out []Source
	for _, r := range d.Responses {
		out = append(out, r.Sources...)
	}
	return out
}

// Answer is the proposal without its verdict label prefix.
func (d *DeliberationResult) Answer() string {
	prefix := "[" + strings.ToUpper(string(d.Verdict.Label)) + "] "
	return strings.TrimPrefix(d.Proposal, prefix)
}
