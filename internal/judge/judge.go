// Package judge wraps the language-model backends used for planning,
// evaluation and segmentation behind a single call contract.
package judge

import (
	"context"
	"errors"
	"strings"
)

// ErrMalformed reports that a judgment response failed structural validation.
// Components catching it fall back to their deterministic path.
var ErrMalformed = errors.New("judge: malformed output")

// Options tune a single judgment call.
type Options struct {
	// JSONOutput asks the provider for structured JSON output where the
	// backend supports constraining it.
	JSONOutput  bool
	Temperature float32
}

// Client is the uniform contract to a language-model backend.
type Client interface {
	Judge(ctx context.Context, system, user string, opts Options) (string, error)
}

// CleanJSON strips markdown code fences around a JSON payload. It never
// attempts character-level repair: output that does not parse after this is
// classified malformed and handled by the caller's fallback.
func CleanJSON(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		if idx := strings.IndexByte(t, '\n'); idx != -1 {
			t = t[idx+1:]
		}
		if j := strings.LastIndex(t, "```"); j != -1 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}
	return t
}
