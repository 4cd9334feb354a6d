package domain

import "github.com/google/uuid"

type QueryClass string

const (
	ClassConversational QueryClass = "conversational"
	ClassFactual        QueryClass = "factual"
	ClassAnalytical     QueryClass = "analytical"
)

func ValidQueryClass(c string) bool {
	switch QueryClass(c) {
	case ClassConversational, ClassFactual, ClassAnalytical:
		return true
	}
	return false
}

// Route is the router's decision for one query.
type Route struct {
	Class      QueryClass `json:"class"`
	Branches   []Branch   `json:"branches"`
	Deliberate bool       `json:"deliberate"`
	Reason     string     `json:"reason,omitempty"`
}

// QueryOptions tune a single processQuery call.
type QueryOptions struct {
	// RequireAnchor defaults to true when nil.
	RequireAnchor     *bool             `json:"require_anchor,omitempty"`
	ForceDeliberation bool              `json:"force_deliberation,omitempty"`
	ForceClass        QueryClass        `json:"force_class,omitempty"`
	IncludeTrace      bool              `json:"include_trace,omitempty"`
	UserLevel         VerificationLevel `json:"user_level,omitempty"`
	Domain            string            `json:"domain,omitempty"`
}

func (o QueryOptions) AnchorRequired() bool {
	return o.RequireAnchor == nil || *o.RequireAnchor
}

type QueryRequest struct {
	Query     string       `json:"query"`
	UserID    string       `json:"user_id"`
	SessionID string       `json:"session_id,omitempty"`
	Options   QueryOptions `json:"options"`
}

// QueryResponse is the caller-facing result. Answer is nil whenever the
// system does not know.
type QueryResponse struct {
	RequestID       string              `json:"request_id"`
	Answer          *string             `json:"answer"`
	Message         string              `json:"message,omitempty"`
	IsVerified      bool                `json:"is_verified"`
	Confidence      int                 `json:"confidence"`
	Sources         []Source            `json:"sources"`
	Branch          Branch              `json:"branch,omitempty"`
	Class           QueryClass          `json:"class,omitempty"`
	RejectionReason *RejectionReason    `json:"rejection_reason,omitempty"`
	Verdict         *Verdict            `json:"verdict,omitempty"`
	Trace           *ValidationTrace    `json:"trace,omitempty"`
	ClaimID         *uuid.UUID          `json:"claim_id,omitempty"`
	Deliberation    *DeliberationResult `json:"-"`
}

// DoNotKnow builds the rejection shape for a reason.
func DoNotKnow(requestID string, reason RejectionReason) *QueryResponse {
	r := reason
	return &QueryResponse{
		RequestID:       requestID,
		Message:         "I do not know, because " + reason.Explanation() + ".",
		Confidence:      0,
		Sources:         []Source{},
		RejectionReason: &r,
	}
}

type StreamEventType string

const (
	EventThinking    StreamEventType = "thinking"
	EventAnswerChunk StreamEventType = "answer_chunk"
	EventFinal       StreamEventType = "final"
	EventError       StreamEventType = "error"
)

type ThinkingStep struct {
	Phase string `json:"phase"`
	Text  string `json:"text"`
}

// StreamEvent is one ordered progress event for a streamed request. Exactly
// one of the payload fields is set, matching Type.
type StreamEvent struct {
	RequestID   string          `json:"request_id"`
	Seq         int             `json:"seq"`
	Type        StreamEventType `json:"type"`
	Thinking    *ThinkingStep   `json:"thinking,omitempty"`
	AnswerChunk string          `json:"answer_chunk,omitempty"`
	Final       *QueryResponse  `json:"final,omitempty"`
	Error       string          `json:"error,omitempty"`
}
