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

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

// ollamaSummarizer runs the summary prompt against a local Ollama server.
type ollamaSummarizer struct {
	baseURL string
	model   string
	client  *http.Client
	log     *logger.Logger
}

func newOllamaSummarizer(baseURL, model string, timeout time.Duration, log *logger.Logger) *ollamaSummarizer {
	return &ollamaSummarizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		log:     log.WithComponent("summarizer-local"),
	}
}

func (o *ollamaSummarizer) Tier() Tier { return TierLocal }

// available returns true if the server answers GET /api/tags.
func (o *ollamaSummarizer) available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format,omitempty"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

func (o *ollamaSummarizer) chat(ctx context.Context, prompt, format string) (string, error) {
	payload, _ := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Format:   format,
		Stream:   false,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: bad chat response: %v", ErrUnavailable, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", ErrUnavailable, parsed.Error)
	}
	return parsed.Message.Content, nil
}

func (o *ollamaSummarizer) Summarize(ctx context.Context, transcript, personName string, durationSeconds float64) (types.SummaryResult, error) {
	content, err := o.chat(ctx, buildSummaryPrompt(transcript, personName, durationSeconds), "json")
	if err != nil {
		return types.SummaryResult{}, err
	}
	return parseSummaryContent(content, o.log), nil
}

func (o *ollamaSummarizer) SummarizeDay(ctx context.Context, records []types.ConversationRecord) (string, error) {
	content, err := o.chat(ctx, buildDailyPrompt(records), "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// parseSummaryContent decodes the structured JSON a model tier returns.
// A parse failure degrades to a raw-text wrapping result within the same
// call instead of failing the operation.
func parseSummaryContent(content string, log *logger.Logger) types.SummaryResult {
	raw := extractJSON(content)
	if raw != "" {
		var out types.SummaryResult
		if err := json.Unmarshal([]byte(raw), &out); err == nil && out.Summary != "" {
			normalizeSummary(&out)
			return out
		}
	}
	log.WithField("content_len", len(content)).Warn("model returned unparseable summary, wrapping raw text")
	return wrapRawSummary(content)
}

func normalizeSummary(s *types.SummaryResult) {
	if s.KeyTopics == nil {
		s.KeyTopics = []string{}
	}
	if s.ImportantDetails == nil {
		s.ImportantDetails = []string{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []string{}
	}
	switch s.Sentiment {
	case types.SentimentPositive, types.SentimentNegative, types.SentimentNeutral:
	default:
		s.Sentiment = types.SentimentNeutral
	}
	if s.SentimentScore > 1 {
		s.SentimentScore = 1
	}
	if s.SentimentScore < -1 {
		s.SentimentScore = -1
	}
}
