// Package llm provides a client for an OpenAI-compatible chat completions
// service. It exposes the two capabilities the pipeline consumes: a streaming
// free-text completion and a structured (JSON mode) completion validated
// against a caller-supplied schema type.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quarrylabs/inquest/internal/metrics"
)

// Config holds generation backend settings.
type Config struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Client talks to one OpenAI-compatible endpoint. All calls are paced by a
// shared rate limiter so concurrent connections cannot stampede the backend.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a client from config. A zero RequestsPerSecond disables
// pacing.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Stream         bool          `json:"stream"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Validator is implemented by structured-output schema types that carry their
// own validation rules. StructuredComplete fails if validation fails, so
// callers never see an unschematizable object.
type Validator interface {
	Validate() error
}

func (c *Client) newRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// StructuredComplete issues a JSON-mode completion and decodes the response
// content into out. If out implements Validator, the decoded object is
// validated before being returned.
func (c *Client) StructuredComplete(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body.ResponseFormat = &struct {
		Type string `json:"type"`
	}{Type: "json_object"}

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.GenerationDuration.WithLabelValues("structured").Observe(time.Since(start).Seconds())
	}()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GenerationCalls.WithLabelValues("structured", "error").Inc()
		return fmt.Errorf("call generation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.GenerationCalls.WithLabelValues("structured", "error").Inc()
		return fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode generation response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return fmt.Errorf("generation service returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("structured output failed validation: %w", err)
		}
	}

	metrics.GenerationCalls.WithLabelValues("structured", "ok").Inc()
	c.logger.Debug("Structured completion finished",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
