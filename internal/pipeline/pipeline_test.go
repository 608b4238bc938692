package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-conversations-go/internal/config"
	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/provider"
	"care-conversations-go/internal/types"
)

type fixedTranscriber struct {
	res types.TranscriptionResult
	err error
}

func (f *fixedTranscriber) Tier() provider.Tier { return provider.TierLocal }

func (f *fixedTranscriber) Transcribe(context.Context, []byte, string) (types.TranscriptionResult, error) {
	return f.res, f.err
}

type fixedSummarizer struct {
	res types.SummaryResult
	err error
}

func (f *fixedSummarizer) Tier() provider.Tier { return provider.TierLocal }

func (f *fixedSummarizer) Summarize(context.Context, string, string, float64) (types.SummaryResult, error) {
	return f.res, f.err
}

func (f *fixedSummarizer) SummarizeDay(context.Context, []types.ConversationRecord) (string, error) {
	return "", f.err
}

func TestProcess_HappyPath(t *testing.T) {
	p := New(
		&fixedTranscriber{res: types.TranscriptionResult{Text: "we had a wonderful great lunch", Language: "en", DurationSeconds: 30}},
		&fixedSummarizer{res: types.SummaryResult{Summary: "Lunch together.", Sentiment: "positive", SentimentScore: 0.4, KeyTopics: []string{"food"}}},
		logger.New(),
	)

	res, err := p.Process(context.Background(), []byte("audio"), "a.wav", "Mary")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.Equal(t, "Lunch together.", res.Summary.Summary)
	assert.NotEmpty(t, res.Keywords)
	assert.NotEmpty(t, res.Emotions)
	assert.Empty(t, res.Error)
}

func TestProcess_TranscriptionFailureIsTerminal(t *testing.T) {
	p := New(
		&fixedTranscriber{err: &provider.TranscriptionError{Filename: "a.wav", Err: errors.New("corrupt")}},
		&fixedSummarizer{},
		logger.New(),
	)

	res, err := p.Process(context.Background(), []byte("audio"), "a.wav", "Mary")
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "transcription error")
	assert.Empty(t, res.Transcription.Text)
}

func TestProcess_SummarizationFailureKeepsTranscript(t *testing.T) {
	p := New(
		&fixedTranscriber{res: types.TranscriptionResult{Text: "hello there friend", Language: "en"}},
		&fixedSummarizer{err: &provider.SummarizationError{Err: errors.New("boom")}},
		logger.New(),
	)

	res, err := p.Process(context.Background(), []byte("audio"), "a.wav", "Mary")
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "summarization error")
	assert.Equal(t, "hello there friend", res.Transcription.Text)
}

func TestProcess_FallbackOnlyEndToEnd(t *testing.T) {
	// No local or remote backend configured anywhere: the pipeline must
	// still complete using deterministic logic only.
	log := logger.New()
	p := New(
		provider.NewTranscriber(config.Config{}, log),
		provider.NewSummarizer(config.Config{}, log),
		log,
	)

	res, err := p.Process(context.Background(), make([]byte, 64000), "mary_visit.wav", "Mary")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.Transcription.Text)
	assert.NotEmpty(t, res.Summary.Summary)
	assert.Equal(t, "fallback", res.TranscriberTier)
	assert.Equal(t, "fallback", res.SummarizerTier)
}

func TestNewRecord_MergesResult(t *testing.T) {
	res := types.ConversationResult{
		Status:        types.StatusCompleted,
		Transcription: types.TranscriptionResult{Text: "hi", Language: "en", DurationSeconds: 12},
		Summary:       types.SummaryResult{Summary: "greeting", Sentiment: "neutral", KeyTopics: []string{"general"}},
		Keywords:      []string{"greeting"},
		Emotions:      []types.EmotionScore{{Emotion: "neutral", Confidence: 0.8}},
	}
	rec := NewRecord("u1", "Mary", "/data/audio/u1/a.wav", res)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "hi", rec.Transcript)
	assert.Equal(t, "greeting", rec.Summary)
	assert.Equal(t, types.StatusCompleted, rec.Status)
	assert.Equal(t, 12.0, rec.DurationSeconds)
	assert.False(t, rec.Timestamp.IsZero())
}
