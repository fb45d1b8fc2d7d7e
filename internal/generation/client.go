// Package generation wraps the external asynchronous diagram-generation
// service: submit, poll with adaptive backoff, fetch with sanitization, and a
// fingerprint-keyed cache in front of the whole round trip.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/diagram-agent/internal/config"
	"github.com/example/diagram-agent/internal/models"
)

const maxArtifactBytes = 4 << 20

// Options shape one submit call to the service.
type Options struct {
	Format        string
	StyleID       string
	Language      string
	ContextBefore string
	ContextAfter  string
}

// Client talks to the diagram service. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	cache   *artifactCache
	log     *slog.Logger

	maxChars       int
	pollInitial    time.Duration
	pollMax        time.Duration
	pollMultiplier float64
	pollTimeout    time.Duration

	// sleep is replaced by tests to drive simulated time.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a client from config. logger may carry component context.
func New(cfg config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.GenerationURL, "/"),
		apiKey:         cfg.GenerationKey,
		http:           &http.Client{Timeout: 30 * time.Second},
		limiter:        rate.NewLimiter(rate.Limit(cfg.SubmitPerSecond), 1),
		cache:          newArtifactCache(cfg.CacheSize),
		log:            logger,
		maxChars:       cfg.MaxGenerationChars,
		pollInitial:    cfg.PollInitial,
		pollMax:        cfg.PollMax,
		pollMultiplier: cfg.PollMultiplier,
		pollTimeout:    cfg.PollTimeout,
		sleep:          sleepCtx,
	}
}

// Generate runs the full submit→poll→fetch round trip for one text unit and
// returns sanitized artifact content. Identical input within the cache
// lifetime is served from the cache without touching the service.
func (c *Client) Generate(ctx context.Context, text string, opts Options) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	if len(text) > c.maxChars {
		text = text[:c.maxChars]
	}

	key := fingerprint(text)
	if content, ok := c.cache.get(key); ok {
		c.log.Debug("generation cache hit", "fingerprint", key[:12])
		return content, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	id, err := c.Submit(ctx, text, opts)
	if err != nil {
		return "", err
	}
	req, err := c.Poll(ctx, id)
	if err != nil {
		return "", err
	}
	if len(req.ArtifactRefs) == 0 {
		return "", fmt.Errorf("%w: no artifacts for request %s", ErrGenerationFailed, id)
	}
	raw, err := c.Fetch(ctx, req.ArtifactRefs[0])
	if err != nil {
		return "", err
	}
	content := Sanitize(raw)
	c.cache.put(key, content)
	return content, nil
}

type submitPayload struct {
	Content       string `json:"content"`
	Format        string `json:"format"`
	StyleID       string `json:"style_id,omitempty"`
	Language      string `json:"language,omitempty"`
	ContextBefore string `json:"context_before,omitempty"`
	ContextAfter  string `json:"context_after,omitempty"`
}

// Submit sends one generation request and returns its request ID.
func (c *Client) Submit(ctx context.Context, text string, opts Options) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	if len(text) > c.maxChars {
		text = text[:c.maxChars]
	}
	format := opts.Format
	if format == "" {
		format = "svg"
	}
	payload := submitPayload{
		Content:       text,
		Format:        format,
		StyleID:       opts.StyleID,
		Language:      opts.Language,
		ContextBefore: opts.ContextBefore,
		ContextAfter:  opts.ContextAfter,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/requests", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", wrapTransportErr(err)
	}
	defer res.Body.Close()
	if err := statusError(res); err != nil {
		return "", err
	}
	var out struct {
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("generation: decode submit response: %w", err)
	}
	if out.RequestID == "" {
		return "", errors.New("generation: submit returned no request_id")
	}
	return out.RequestID, nil
}

// Poll queries the request until it reaches a terminal status. The interval
// starts at pollInitial and multiplies up to pollMax; pollTimeout bounds the
// whole wait and converts to ErrTimeout.
func (c *Client) Poll(ctx context.Context, requestID string) (*models.GenerationRequest, error) {
	deadline := time.Now().Add(c.pollTimeout)
	interval := c.pollInitial
	for {
		req, err := c.Status(ctx, requestID)
		if err != nil {
			return nil, err
		}
		switch req.Status {
		case models.RequestCompleted:
			return req, nil
		case models.RequestFailed:
			return nil, fmt.Errorf("%w: request %s", ErrGenerationFailed, requestID)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: polling request %s", ErrTimeout, requestID)
		}
		if err := c.sleep(ctx, interval); err != nil {
			return nil, wrapTransportErr(err)
		}
		interval = time.Duration(float64(interval) * c.pollMultiplier)
		if interval > c.pollMax {
			interval = c.pollMax
		}
	}
}

// Status fetches the current state of one request.
func (c *Client) Status(ctx context.Context, requestID string) (*models.GenerationRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/requests/"+requestID, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	res, err := c.http.Do(req)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	defer res.Body.Close()
	if err := statusError(res); err != nil {
		return nil, err
	}
	var out struct {
		Status         string `json:"status"`
		GeneratedFiles []struct {
			URL string `json:"url"`
		} `json:"generated_files"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("generation: decode status response: %w", err)
	}
	gr := &models.GenerationRequest{RequestID: requestID, Status: models.RequestStatus(out.Status)}
	for _, f := range out.GeneratedFiles {
		if f.URL != "" {
			gr.ArtifactRefs = append(gr.ArtifactRefs, f.URL)
		}
	}
	return gr, nil
}

// Fetch downloads one artifact. Callers sanitize before use; Generate does it
// for them.
func (c *Client) Fetch(ctx context.Context, ref string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)
	res, err := c.http.Do(req)
	if err != nil {
		return "", wrapTransportErr(err)
	}
	defer res.Body.Close()
	if err := statusError(res); err != nil {
		return "", err
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, maxArtifactBytes))
	if err != nil {
		return "", wrapTransportErr(err)
	}
	return string(b), nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// statusError classifies non-2xx responses into the error taxonomy.
func statusError(res *http.Response) error {
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAuthFailure, res.StatusCode)
	case res.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: retryAfter(res)}
	case res.StatusCode == http.StatusRequestTimeout:
		return fmt.Errorf("%w (status %d)", ErrTimeout, res.StatusCode)
	case res.StatusCode >= 500:
		return fmt.Errorf("%w (status %d)", ErrServiceUnavailable, res.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("generation: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
}

func retryAfter(res *http.Response) time.Duration {
	if v := res.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func wrapTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
