package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

func TestExtractJSON_StripsFences(t *testing.T) {
	in := "Here you go:\n```json\n{\"summary\": \"a nice chat\"}\n```"
	assert.Equal(t, `{"summary": "a nice chat"}`, extractJSON(in))
}

func TestExtractJSON_BalancedNesting(t *testing.T) {
	in := `prefix {"a": {"b": 1}, "c": [2]} suffix`
	assert.Equal(t, `{"a": {"b": 1}, "c": [2]}`, extractJSON(in))
}

func TestExtractJSON_NoObject(t *testing.T) {
	assert.Empty(t, extractJSON("no json here"))
	assert.Empty(t, extractJSON(""))
}

func TestExtractContentFromChoices(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":"{\"summary\":\"ok\"}"}}]}`)
	assert.Equal(t, `{"summary":"ok"}`, extractContentFromChoices(body))

	assert.Empty(t, extractContentFromChoices([]byte(`{"choices":[]}`)))
	assert.Empty(t, extractContentFromChoices([]byte(`not json`)))
}

func TestParseSummaryContent_ValidJSON(t *testing.T) {
	content := `{"summary":"lunch with Mary","key_topics":["food"],"sentiment":"positive","sentiment_score":0.4}`
	got := parseSummaryContent(content, logger.New())
	assert.Equal(t, "lunch with Mary", got.Summary)
	assert.Equal(t, []string{"food"}, got.KeyTopics)
	assert.Equal(t, types.SentimentPositive, got.Sentiment)
	assert.NotNil(t, got.ImportantDetails)
	assert.NotNil(t, got.ActionItems)
}

func TestParseSummaryContent_GarbageDegradesToRawWrap(t *testing.T) {
	content := "The model rambled on without any JSON at all."
	got := parseSummaryContent(content, logger.New())
	assert.Equal(t, content, got.Summary)
	assert.Empty(t, got.KeyTopics)
	assert.Equal(t, types.SentimentNeutral, got.Sentiment)
	assert.Zero(t, got.SentimentScore)
}

func TestParseSummaryContent_BadSentimentNormalized(t *testing.T) {
	content := `{"summary":"x","sentiment":"ecstatic","sentiment_score":7}`
	got := parseSummaryContent(content, logger.New())
	assert.Equal(t, types.SentimentNeutral, got.Sentiment)
	assert.Equal(t, 1.0, got.SentimentScore)
}
