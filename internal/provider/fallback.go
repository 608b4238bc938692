package provider

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"care-conversations-go/internal/analysis"
	"care-conversations-go/internal/types"
)

// assumedByteRate stands in for 16kHz mono PCM-equivalent throughput and
// turns a byte length into an estimated duration when no decoder is
// available. 16,000 samples/s at 2 bytes each.
const assumedByteRate = 32000

// fallbackTranscriber produces a clearly marked placeholder transcript.
// It is pure local computation and never fails.
type fallbackTranscriber struct{}

func newFallbackTranscriber() *fallbackTranscriber { return &fallbackTranscriber{} }

func (f *fallbackTranscriber) Tier() Tier { return TierFallback }

func (f *fallbackTranscriber) Transcribe(_ context.Context, audio []byte, filename string) (types.TranscriptionResult, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	text := fmt.Sprintf("[Transcription unavailable for recording %q. No speech-to-text backend is configured.]", base)
	return types.TranscriptionResult{
		Text:            text,
		Language:        "en",
		DurationSeconds: float64(len(audio)) / assumedByteRate,
		Estimated:       true,
	}, nil
}

// fallbackSummarizer wraps the deterministic rule-based analysis. Like
// the fallback transcriber it never fails.
type fallbackSummarizer struct{}

func newFallbackSummarizer() *fallbackSummarizer { return &fallbackSummarizer{} }

func (f *fallbackSummarizer) Tier() Tier { return TierFallback }

func (f *fallbackSummarizer) Summarize(_ context.Context, transcript, personName string, durationSeconds float64) (types.SummaryResult, error) {
	return analysis.Summarize(transcript, personName, durationSeconds), nil
}

func (f *fallbackSummarizer) SummarizeDay(_ context.Context, records []types.ConversationRecord) (string, error) {
	return analysis.SummarizeDay(records), nil
}
