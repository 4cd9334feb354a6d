package llm

import (
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

// stripFences removes a markdown code fence around a model reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// jsonObject cuts the outermost {...} span out of a reply that may carry
// surrounding prose.
func jsonObject(s string) string {
	s = stripFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func jsonArray(s string) string {
	s = stripFences(s)
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

type sourceJSON struct {
	Kind  string `json:"kind"`
	Ref   string `json:"ref"`
	Title string `json:"title"`
}

func toSources(in []sourceJSON) []domain.Source {
	var out []domain.Source
	for _, s := range in {
		ref := strings.TrimSpace(s.Ref)
		if ref == "" {
			continue
		}
		kind := strings.TrimSpace(s.Kind)
		if kind == "" {
			kind = domain.SourceKindDocument
		}
		out = append(out, domain.Source{Kind: kind, Ref: ref, Title: strings.TrimSpace(s.Title)})
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
