package llm

import (
	"context"
	"sync"
)

// MockClient is a configurable completion client for tests and offline runs.
// Respond, when set, takes precedence over Response.
type MockClient struct {
	Response string
	Err      error
	Respond  func(prompt string) (string, error)

	mu    sync.Mutex
	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		Response: `{"content": "I have no verified information about that.", "confidence": 10, "reasoning": "mock provider", "sources": []}`,
	}
}

func (c *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, prompt)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Respond != nil {
		return c.Respond(prompt)
	}
	if c.Err != nil {
		return "", c.Err
	}
	return c.Response, nil
}

// CallCount is safe to read while members run concurrently.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
