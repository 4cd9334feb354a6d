package service

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

const (
	// VerdictPrefixLength is how many leading runes of normalized content
	// decide that two responses hold the same position.
	VerdictPrefixLength = 50
	// VerdictMinConfidence is the average confidence below which the council
	// is deadlocked regardless of agreement.
	VerdictMinConfidence = 50.0
	VerdictMajorityRatio = 0.66
	VerdictSplitRatio    = 0.5
	// DissentDeviation is how far a member's confidence may stray from the
	// average before it is listed as dissent.
	DissentDeviation = 20.0
)

// positionKey normalizes content to the fixed-length prefix used for vote
// grouping.
func positionKey(content string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(content), " "))
	if utf8.RuneCountInString(norm) <= VerdictPrefixLength {
		return norm
	}
	return string([]rune(norm)[:VerdictPrefixLength])
}

// VerdictEngine aggregates council responses into a verdict and proposal.
type VerdictEngine struct{}

func NewVerdictEngine() *VerdictEngine {
	return &VerdictEngine{}
}

// Render classifies agreement among responses. The proposal is the content
// of the most confident response prefixed with the verdict label; ties go to
// the earliest response.
func (e *VerdictEngine) Render(responses []domain.CouncilResponse, challenges []domain.Challenge) (domain.Verdict, string, float64) {
	if len(responses) == 0 {
		return domain.Verdict{
			Label:      domain.VerdictDeadlock,
			VoteCounts: map[string]int{},
			Reasoning:  "no council member responded",
		}, "", 0
	}

	votes := make(map[string]int)
	largest := 0
	var total float64
	best := 0
	for i, r := range responses {
		key := positionKey(r.Content)
		votes[key]++
		if votes[key] > largest {
			largest = votes[key]
		}
		total += float64(r.Confidence)
		if r.Confidence > responses[best].Confidence {
			best = i
		}
	}
	avg := total / float64(len(responses))
	ratio := float64(largest) / float64(len(responses))

	var label domain.VerdictLabel
	switch {
	case avg < VerdictMinConfidence:
		label = domain.VerdictDeadlock
	case ratio == 1.0:
		label = domain.VerdictConsensus
	case ratio >= VerdictMajorityRatio:
		label = domain.VerdictMajority
	case ratio >= VerdictSplitRatio:
		label = domain.VerdictSplit
	default:
		label = domain.VerdictDeadlock
	}

	reasoning := fmt.Sprintf("%d of %d responses share the leading position across %d distinct positions; average confidence %.1f",
		largest, len(responses), len(votes), avg)
	if avg < VerdictMinConfidence {
		reasoning += fmt.Sprintf(" is below %.0f", VerdictMinConfidence)
	}
	if len(challenges) > 0 {
		reasoning += fmt.Sprintf("; %d challenge(s) raised", len(challenges))
	}

	v := domain.Verdict{
		Label:      label,
		VoteCounts: votes,
		Reasoning:  reasoning,
	}
	if label != domain.VerdictConsensus {
		for _, r := range responses {
			if math.Abs(float64(r.Confidence)-avg) > DissentDeviation {
				v.Dissent = append(v.Dissent, fmt.Sprintf("%s: confidence %d vs average %.1f", r.Member, r.Confidence, avg))
			}
		}
	}

	proposal := "[" + strings.ToUpper(string(label)) + "] " + responses[best].Content
	return v, proposal, avg
}
