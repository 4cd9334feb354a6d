package domain

type RejectionReason string

const (
	RejectNoSource               RejectionReason = "NO_SOURCE"
	RejectContradictsMemory      RejectionReason = "CONTRADICTS_MEMORY"
	RejectNoConsensus            RejectionReason = "NO_CONSENSUS"
	RejectFailedCritique         RejectionReason = "FAILED_CRITIQUE"
	RejectInsufficientConfidence RejectionReason = "INSUFFICIENT_CONFIDENCE"
	RejectContamination          RejectionReason = "CONTAMINATION_DETECTED"
	RejectTimeout                RejectionReason = "TIMEOUT"
	RejectInternalError          RejectionReason = "INTERNAL_ERROR"
)

// Explanation renders the reason as the tail of "I do not know, because ...".
func (r RejectionReason) Explanation() string {
	switch r {
	case RejectNoSource:
		return "no traceable source supports an answer"
	case RejectContradictsMemory:
		return "the answer contradicts knowledge already on record"
	case RejectNoConsensus:
		return "the council could not reach consensus"
	case RejectFailedCritique:
		return "the answer did not survive critique"
	case RejectInsufficientConfidence:
		return "confidence in the answer is below 100%"
	case RejectContamination:
		return "knowledge branches were mixed"
	case RejectTimeout:
		return "the request timed out"
	default:
		return "an internal error occurred"
	}
}

type StepResult string

const (
	StepPass StepResult = "PASS"
	StepWarn StepResult = "WARN"
	StepFail StepResult = "FAIL"
)

type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// TraceStep is one entry of a validation trace.
type TraceStep struct {
	StepNumber int        `json:"step_number"`
	Component  string     `json:"component"`
	Action     string     `json:"action"`
	Result     StepResult `json:"result"`
	Details    string     `json:"details,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// ValidationTrace is the complete audit record of one gate run.
type ValidationTrace struct {
	Steps           []TraceStep `json:"steps"`
	FinalDecision   Decision    `json:"final_decision"`
	TotalDurationMs int64       `json:"total_duration_ms"`
}

// ValidationResult is the gate's verdict on a proposal. A rejection is a
// normal result, not an error.
type ValidationResult struct {
	IsValid         bool             `json:"is_valid"`
	Confidence      int              `json:"confidence"`
	Sources         []Source         `json:"sources"`
	Trace           ValidationTrace  `json:"trace"`
	RejectionReason *RejectionReason `json:"rejection_reason,omitempty"`
}
