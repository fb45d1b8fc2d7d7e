package judge

import (
	"context"
	"errors"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini is a judgment client backed by the Google generative AI SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini dials the Gemini API with the given key.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Gemini{client: c, model: model}, nil
}

func (g *Gemini) Judge(ctx context.Context, system, user string, opts Options) (string, error) {
	m := g.client.GenerativeModel(g.model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	m.SetTemperature(opts.Temperature)
	if opts.JSONOutput {
		m.ResponseMIMEType = "application/json"
	}
	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", errors.New("gemini: no candidates")
	}
	return txt, nil
}

// Close releases the underlying gRPC connection.
func (g *Gemini) Close() error { return g.client.Close() }

func firstText(r *genai.GenerateContentResponse) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
