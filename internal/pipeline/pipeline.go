// Package pipeline orchestrates transcription, summarization and the
// derived-feature extractors into one processConversation operation. The
// pipeline is a pure transform plus provider I/O: it never touches
// storage, so persisting the result stays the caller's decision.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"care-conversations-go/internal/analysis"
	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/provider"
	"care-conversations-go/internal/types"
)

type Pipeline struct {
	transcriber provider.Transcriber
	summarizer  provider.Summarizer
	log         *logger.Logger
}

func New(t provider.Transcriber, s provider.Summarizer, log *logger.Logger) *Pipeline {
	return &Pipeline{
		transcriber: t,
		summarizer:  s,
		log:         log.WithComponent("pipeline"),
	}
}

// Process runs one conversation through transcription, then fans out
// summarization, keyword extraction and emotion extraction concurrently
// (all three depend only on the transcript). A failure yields a terminal
// failed result with error text rather than a panic or partial record;
// re-processing requires a new call. The returned error mirrors the
// result's Error field for callers that want to branch on it.
func (p *Pipeline) Process(ctx context.Context, audio []byte, filename, personName string) (types.ConversationResult, error) {
	start := time.Now()
	log := p.log.WithField("filename", filename)
	log.WithField("bytes", len(audio)).Info("processing conversation")

	res := types.ConversationResult{
		Status:          types.StatusProcessing,
		TranscriberTier: string(p.transcriber.Tier()),
		SummarizerTier:  string(p.summarizer.Tier()),
	}

	tr, err := p.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		log.WithError(err).Warn("transcription failed, marking conversation failed")
		res.Status = types.StatusFailed
		res.Error = fmt.Sprintf("transcription error: %v", err)
		res.ProcessingMs = time.Since(start).Milliseconds()
		return res, err
	}
	res.Transcription = tr

	var summary types.SummaryResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var sumErr error
		summary, sumErr = p.summarizer.Summarize(gctx, tr.Text, personName, tr.DurationSeconds)
		return sumErr
	})
	g.Go(func() error {
		res.Keywords = analysis.ExtractKeywords(tr.Text)
		return nil
	})
	g.Go(func() error {
		res.Emotions = analysis.DetectEmotions(tr.Text)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("summarization failed, marking conversation failed")
		res.Status = types.StatusFailed
		res.Error = fmt.Sprintf("summarization error: %v", err)
		res.ProcessingMs = time.Since(start).Milliseconds()
		return res, err
	}
	res.Summary = summary
	res.Status = types.StatusCompleted
	res.ProcessingMs = time.Since(start).Milliseconds()

	log.WithField("duration_ms", res.ProcessingMs).
		WithField("sentiment", summary.Sentiment).
		Info("conversation processed")
	return res, nil
}

// NewRecord merges a pipeline result into a storable record. A failed
// result keeps whatever transcript survived, plus the error text, so the
// conversation stays visible instead of silently dropped.
func NewRecord(userID, personName, audioPath string, res types.ConversationResult) types.ConversationRecord {
	return types.ConversationRecord{
		UserID:          userID,
		PersonName:      personName,
		Transcript:      res.Transcription.Text,
		Summary:         res.Summary.Summary,
		KeyTopics:       res.Summary.KeyTopics,
		Emotions:        res.Emotions,
		Sentiment:       res.Summary.Sentiment,
		SentimentScore:  res.Summary.SentimentScore,
		Keywords:        res.Keywords,
		AudioPath:       audioPath,
		DurationSeconds: res.Transcription.DurationSeconds,
		Language:        res.Transcription.Language,
		Status:          res.Status,
		ProcessingError: res.Error,
		Timestamp:       time.Now().UTC(),
	}
}
