package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Anthropic is a judgment client speaking the Messages API over plain HTTP.
type Anthropic struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

// NewAnthropic builds a client with a default HTTP timeout.
func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.anthropic.com",
		HTTP:    &http.Client{Timeout: 45 * time.Second},
	}
}

func (c *Anthropic) Judge(ctx context.Context, system, user string, opts Options) (string, error) {
	body := map[string]any{
		"model":       c.Model,
		"max_tokens":  2048,
		"temperature": opts.Temperature,
		"messages": []map[string]any{{
			"role":    "user",
			"content": []map[string]string{{"type": "text", "text": user}},
		}},
	}
	if system != "" {
		body["system"] = system
	}
	// The Messages API has no JSON output switch; opts.JSONOutput is conveyed
	// through the system prompt and validated by the caller.

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var eresp map[string]any
		_ = json.NewDecoder(res.Body).Decode(&eresp)
		return "", fmt.Errorf("anthropic status %d: %v", res.StatusCode, eresp)
	}
	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", errors.New("anthropic: no content")
	}
	return out.Content[0].Text, nil
}
