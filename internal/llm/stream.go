package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/inquest/internal/metrics"
)

// Fragment is one incremental piece of a streaming completion. A non-nil Err
// terminates the stream; Text is empty in that case.
type Fragment struct {
	Text string
	Err  error
}

// streamDelta mirrors the chunk shape of OpenAI-compatible streaming
// responses; only the delta content is consumed.
type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

const scannerBufferBytes = 64 * 1024
const scannerMaxBytes = 1024 * 1024

// StreamComplete issues a streaming completion and returns a channel of text
// fragments in generation order. The channel is closed when the upstream
// stream ends; upstream failures surface as a single Fragment with Err set.
// Canceling ctx aborts the HTTP request and closes the producer side.
func (c *Client) StreamComplete(ctx context.Context, systemPrompt, userPrompt string) (<-chan Fragment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: true,
	}
	req, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	// Streaming calls can legitimately outlive the non-streaming timeout, so
	// rely on ctx for cancellation instead of the client-wide deadline.
	httpClient := &http.Client{Transport: c.http.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.GenerationCalls.WithLabelValues("stream", "error").Inc()
		return nil, fmt.Errorf("call generation service: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		metrics.GenerationCalls.WithLabelValues("stream", "error").Inc()
		return nil, fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		start := time.Now()
		fragments := 0
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, scannerBufferBytes), scannerMaxBytes)

		for scanner.Scan() {
			line := scanner.Text()
			// SSE comments (": ping") are upstream keepalives.
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}

			var chunk streamDelta
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Debug("Skipping malformed stream chunk", zap.Error(err))
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			piece := chunk.Choices[0].Delta.Content
			if piece == "" {
				continue
			}

			fragments++
			select {
			case out <- Fragment{Text: piece}:
			case <-ctx.Done():
				return
			}
		}

		metrics.GenerationDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			metrics.GenerationCalls.WithLabelValues("stream", "error").Inc()
			select {
			case out <- Fragment{Err: fmt.Errorf("read generation stream: %w", err)}:
			case <-ctx.Done():
			}
			return
		}

		metrics.GenerationCalls.WithLabelValues("stream", "ok").Inc()
		c.logger.Debug("Streaming completion finished",
			zap.String("model", c.model),
			zap.Int("fragments", fragments),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	return out, nil
}
