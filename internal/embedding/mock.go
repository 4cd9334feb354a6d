package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// MockDimensions is the vector size produced by MockClient.
const MockDimensions = 256

// MockClient is a deterministic embedder for tests and offline runs. It
// hashes each lower-cased word into a bucket, so texts sharing words have a
// positive cosine similarity and unrelated texts score near zero.
type MockClient struct {
	Err error

	mu    sync.Mutex
	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, text)
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return HashEmbedding(text), nil
}

// HashEmbedding builds a normalized bag-of-words vector.
func HashEmbedding(text string) []float32 {
	v := make([]float32, MockDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%MockDimensions]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
