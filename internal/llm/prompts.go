package llm

// Reasoning styles for council members.
const (
	StyleAnalyst     = "analyst"
	StyleSkeptic     = "skeptic"
	StyleSynthesizer = "synthesizer"
	StylePragmatist  = "pragmatist"
)

var stylePreambles = map[string]string{
	StyleAnalyst: `You are the analyst on a review council. Break the question into parts, reason step by step and rely only on evidence you can name.`,
	StyleSkeptic: `You are the skeptic on a review council. Look for missing evidence, hidden assumptions and reasons the obvious answer could be wrong. Lower your confidence whenever support is thin.`,
	StyleSynthesizer: `You are the synthesizer on a review council. Combine the material you are given into the single most defensible answer and say where sources disagree.`,
	StylePragmatist: `You are the pragmatist on a review council. Give the answer a careful practitioner would act on and state its practical limits.`,
}

// ValidStyle reports whether a reasoning style is known.
func ValidStyle(style string) bool {
	_, ok := stylePreambles[style]
	return ok
}

const memberPrompt = `%s

Answer the material below. Respond ONLY with a JSON object, no other text:
{"content": "<your answer>", "confidence": <integer 0-100>, "reasoning": "<one or two sentences>", "sources": [{"kind": "document|url|ledger", "ref": "<reference>", "title": "<optional>"}]}

Rules:
- confidence 100 means you can cite a source that settles the question
- cite only sources present in the material or that you can name precisely
- use an empty sources array when you have none

Material:
%s`

const hypothesisBranchPrompt = `You answer from reasoned inference, not verified records. Give your best supported answer to the query, with a confidence between 50 and 99 reflecting how well the inference holds.

Respond ONLY with a JSON object, no other text:
{"content": "<answer>", "confidence": <integer 50-99>, "sources": [{"kind": "document|url", "ref": "<reference>", "title": "<optional>"}]}

If you cannot infer anything useful, respond with {"content": "", "confidence": 50, "sources": []}.

Query: %s`

const unverifiedBranchPrompt = `You answer from general background knowledge that has not been verified. Give a brief answer to the query with a confidence between 0 and 49.

Respond ONLY with a JSON object, no other text:
{"content": "<answer>", "confidence": <integer 0-49>, "sources": []}

If you have nothing to say, respond with {"content": "", "confidence": 0, "sources": []}.

Query: %s`

const factExtractionPrompt = `Extract durable facts the user states about themselves from the message below.

Fact types:
- identity: the user's name or what they want to be called
- relationship: people in the user's life and who they are
- preference: likes, dislikes and preferred ways of doing things
- context: where the user lives, works or studies, and other circumstances
- goal: what the user is trying to achieve
- instruction: how the user wants to be addressed or answered
- declaration: other statements about who or what the user is

Set requires_verification to true for identity, relationship and declaration facts.

Respond ONLY with a JSON array, no other text. Use [] when there is nothing to extract:
[{"type": "<fact type>", "content": "<fact as a short sentence>", "confidence": <integer 0-100>, "keywords": ["<keyword>"], "requires_verification": <true|false>}]

Message:
%s`
