package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

// gatewaySummarizer calls an OpenAI-compatible chat-completions gateway.
type gatewaySummarizer struct {
	url     string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
	log     *logger.Logger
}

func newGatewaySummarizer(url, apiKey, model string, timeout time.Duration, log *logger.Logger) *gatewaySummarizer {
	return &gatewaySummarizer{
		url:     url,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log.WithComponent("summarizer-remote"),
	}
}

func (g *gatewaySummarizer) Tier() Tier { return TierRemote }

// complete sends one chat completion with retry/backoff and returns the
// assistant content. 4xx responses are permanent: retrying the same
// request cannot succeed.
func (g *gatewaySummarizer) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.0,
	}
	data, _ := json.Marshal(reqBody)

	var content string
	var lastErr error

	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		req, _ := http.NewRequestWithContext(callCtx, http.MethodPost, g.url, bytes.NewReader(data))
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("gateway rejected request: status %d: %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("gateway server error: %s", string(body))
			return lastErr
		}

		var parsed struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
			lastErr = fmt.Errorf("unexpected gateway response: %s", string(body))
			return lastErr
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = g.timeout * 2
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return content, nil
}

func (g *gatewaySummarizer) Summarize(ctx context.Context, transcript, personName string, durationSeconds float64) (types.SummaryResult, error) {
	content, err := g.complete(ctx, buildSummaryPrompt(transcript, personName, durationSeconds))
	if err != nil {
		return types.SummaryResult{}, err
	}
	return parseSummaryContent(content, g.log), nil
}

func (g *gatewaySummarizer) SummarizeDay(ctx context.Context, records []types.ConversationRecord) (string, error) {
	content, err := g.complete(ctx, buildDailyPrompt(records))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
