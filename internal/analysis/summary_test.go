package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-conversations-go/internal/types"
)

func TestSummarize_TopicsAndSentiment(t *testing.T) {
	res := Summarize("We talked about the doctor appointment and had a wonderful lunch with her daughter", "Mary", 120)

	assert.Equal(t, []string{"family", "health", "food"}, res.KeyTopics)
	assert.Equal(t, "neutral", res.Sentiment) // single positive hit stays neutral
	assert.Contains(t, res.Summary, "Mary")
	assert.Contains(t, res.Summary, "120 seconds")
	assert.NotNil(t, res.ImportantDetails)
	assert.NotNil(t, res.ActionItems)
}

func TestSummarize_GeneralTopicFallback(t *testing.T) {
	res := Summarize("mmm hmm yes indeed", "", 5)
	assert.Equal(t, []string{"general"}, res.KeyTopics)
	assert.Contains(t, res.Summary, "unidentified person")
}

func TestSummarize_Deterministic(t *testing.T) {
	first := Summarize("great lunch, terrible weather", "John", 60)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Summarize("great lunch, terrible weather", "John", 60))
	}
}

func TestSummarizeDay_Empty(t *testing.T) {
	assert.Equal(t, "No conversations were recorded today.", SummarizeDay(nil))
}

func TestSummarizeDay_DistinctPeopleAndTopics(t *testing.T) {
	recs := []types.ConversationRecord{
		{PersonName: "Mary", KeyTopics: []string{"family", "food"}},
		{PersonName: "John", KeyTopics: []string{"food", "weather"}},
		{PersonName: "Mary", KeyTopics: []string{"family"}},
	}
	got := SummarizeDay(recs)
	assert.Contains(t, got, "3 conversations")
	assert.Contains(t, got, "John, Mary")
	assert.Contains(t, got, "family, food, weather")
}
