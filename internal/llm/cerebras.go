package llm

const (
	cerebrasAPIURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel  = "llama-3.3-70b"
)

// NewCerebrasClient returns a chat client for Cerebras, which speaks the
// OpenAI request/response format.
func NewCerebrasClient(apiKey string, opts Options) *OpenAIClient {
	return newChatClient("cerebras", apiKey, cerebrasAPIURL, cerebrasModel, opts)
}
