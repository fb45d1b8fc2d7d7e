package judge

import (
	"context"
	"strings"
)

// Mock is used when no real provider is configured. Its answers are chosen so
// every component lands on its deterministic fallback: the heuristic plan, the
// default-worthy evaluation and the mechanical segment slicing.
type Mock struct{}

func (m *Mock) Judge(ctx context.Context, system, user string, opts Options) (string, error) {
	s := strings.ToLower(system)
	switch {
	case strings.Contains(s, "planning"):
		return `{"admitted": true, "reason": "mock", "items": []}`, nil
	case strings.Contains(s, "worth"):
		return `{"worthy": true, "reason": "mock", "confidence": 0.5, "potential": "medium"}`, nil
	case strings.Contains(s, "segment"):
		return `{"segments": []}`, nil
	}
	return "{}", nil
}
