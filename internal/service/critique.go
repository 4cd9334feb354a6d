package service

import (
	"regexp"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

const (
	// CritiqueConfidenceCeiling is the self-reported confidence above which an
	// unsourced response is challenged.
	CritiqueConfidenceCeiling = 90
	// CritiqueLongResponse is the length in characters past which a response
	// is expected to weigh alternatives.
	CritiqueLongResponse = 500
)

var (
	absoluteLanguage = regexp.MustCompile(`(?i)\b(always|never|definitely|certainly|undoubtedly|unquestionably|guaranteed|without (a )?doubt|everyone knows|it is obvious|obviously|experts (agree|say)|according to experts|authorities (agree|say)|it is well known)\b`)
	researchCitation = regexp.MustCompile(`(?i)\b(research|studies|study|data|statistics|surveys?|evidence)\s+(shows?|suggests?|indicates?|proves?|found|finds|confirms?|demonstrates?)\b`)
	contrastLanguage = regexp.MustCompile(`(?i)\b(however|although|though|on the other hand|nevertheless|whereas|but)\b`)
)

// CritiqueEngine plays devil's advocate against individual council responses.
type CritiqueEngine struct{}

func NewCritiqueEngine() *CritiqueEngine {
	return &CritiqueEngine{}
}

// Critique inspects one response and returns at most one challenge. Checks
// run in a fixed order and the first that fires wins.
func (e *CritiqueEngine) Critique(r domain.CouncilResponse) *domain.Challenge {
	unsourced := len(r.Sources) == 0

	switch {
	case r.Confidence > CritiqueConfidenceCeiling && unsourced:
		return e.challenge(r, domain.SeverityHigh,
			"claims high confidence without citing any source")
	case absoluteLanguage.MatchString(r.Content):
		return e.challenge(r, domain.SeverityMedium,
			"relies on absolute language or an appeal to authority")
	case unsourced && researchCitation.MatchString(r.Content):
		return e.challenge(r, domain.SeverityHigh,
			"refers to research or data but cites no source")
	case len(r.Content) > CritiqueLongResponse && !contrastLanguage.MatchString(r.Content):
		return e.challenge(r, domain.SeverityLow,
			"long answer that never considers an alternative view")
	}
	return nil
}

func (e *CritiqueEngine) challenge(r domain.CouncilResponse, sev domain.Severity, text string) *domain.Challenge {
	return &domain.Challenge{
		TargetMember: r.Member,
		Text:         strings.TrimSpace(r.Member + " " + text),
		Severity:     sev,
	}
}

// CritiqueAll runs the engine once per response, in response order.
func (e *CritiqueEngine) CritiqueAll(responses []domain.CouncilResponse) []domain.Challenge {
	var out []domain.Challenge
	for _, r := range responses {
		if c := e.Critique(r); c != nil {
			out = append(out, *c)
		}
	}
	return out
}
