// Package provider implements the three capability tiers behind
// transcription and summarization: a local model server, a remote
// service, and a deterministic fallback. Tier selection happens once at
// construction; a failing call falls through to the next tier for that
// call only, and no tier is promoted back without reconstruction.
package provider

import (
	"context"
	"errors"
	"fmt"

	"care-conversations-go/internal/config"
	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

// Tier identifies one capability level.
type Tier string

const (
	TierLocal    Tier = "local"
	TierRemote   Tier = "remote"
	TierFallback Tier = "fallback"
)

// ErrUnavailable marks a transient provider failure (unreachable
// endpoint, timeout, exhausted retries). The tiered wrappers recover it
// by demoting to the next tier; it never reaches the pipeline unless a
// bug removes the fallback tier from the chain.
var ErrUnavailable = errors.New("provider unavailable")

// TranscriptionError is terminal for one conversation: the audio itself
// could not be transcribed (corrupt input, unsupported codec, rejected
// by the service).
type TranscriptionError struct {
	Filename string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed for %s: %v", e.Filename, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// SummarizationError is terminal for one conversation.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// Transcriber converts raw audio bytes into text plus duration.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (types.TranscriptionResult, error)
	Tier() Tier
}

// Summarizer converts a transcript plus speaker context into a
// structured summary, and aggregates a day's records into one narrative.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, personName string, durationSeconds float64) (types.SummaryResult, error)
	SummarizeDay(ctx context.Context, records []types.ConversationRecord) (string, error)
	Tier() Tier
}

// NewTranscriber probes the configured backends once and returns a
// transcriber whose active tier is the most capable one that responded.
// The deterministic fallback always terminates the chain, so the result
// can always produce some transcript.
func NewTranscriber(cfg config.Config, log *logger.Logger) Transcriber {
	log = log.WithComponent("transcriber-factory")

	var chain []Transcriber
	if cfg.WhisperURL != "" {
		local := newWhisperTranscriber(cfg.WhisperURL, cfg.ProviderTimeout, log)
		if local.available(context.Background()) {
			chain = append(chain, local)
		} else {
			log.WithField("url", cfg.WhisperURL).Warn("local speech-to-text server not responding, skipping tier")
		}
	}
	if cfg.TranscribeURL != "" {
		chain = append(chain, newRemoteTranscriber(cfg.TranscribeURL, cfg.ProviderTimeout, log))
	}
	chain = append(chain, newFallbackTranscriber())

	log.WithField("active_tier", string(chain[0].Tier())).Info("transcriber initialized")
	return &tieredTranscriber{chain: chain, log: log.WithComponent("transcriber")}
}

// NewSummarizer mirrors NewTranscriber for the summarization providers.
func NewSummarizer(cfg config.Config, log *logger.Logger) Summarizer {
	log = log.WithComponent("summarizer-factory")

	var chain []Summarizer
	if cfg.OllamaURL != "" {
		local := newOllamaSummarizer(cfg.OllamaURL, cfg.LLMModel, cfg.ProviderTimeout, log)
		if local.available(context.Background()) {
			chain = append(chain, local)
		} else {
			log.WithField("url", cfg.OllamaURL).Warn("local LLM server not responding, skipping tier")
		}
	}
	if cfg.LLMGatewayURL != "" && cfg.LLMAPIKey != "" {
		chain = append(chain, newGatewaySummarizer(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.ProviderTimeout, log))
	}
	chain = append(chain, newFallbackSummarizer())

	log.WithField("active_tier", string(chain[0].Tier())).Info("summarizer initialized")
	return &tieredSummarizer{chain: chain, log: log.WithComponent("summarizer")}
}

type tieredTranscriber struct {
	chain []Transcriber
	log   *logger.Logger
}

func (t *tieredTranscriber) Tier() Tier { return t.chain[0].Tier() }

func (t *tieredTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (types.TranscriptionResult, error) {
	if len(audio) == 0 {
		return types.TranscriptionResult{}, &TranscriptionError{Filename: filename, Err: errors.New("empty audio payload")}
	}

	var lastErr error
	for _, p := range t.chain {
		res, err := p.Transcribe(ctx, audio, filename)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			// Terminal for this conversation, demotion would not help.
			return types.TranscriptionResult{}, err
		}
		t.log.WithError(err).WithField("tier", string(p.Tier())).Warn("tier unavailable, demoting for this call")
		lastErr = err
	}
	return types.TranscriptionResult{}, &TranscriptionError{Filename: filename, Err: lastErr}
}

type tieredSummarizer struct {
	chain []Summarizer
	log   *logger.Logger
}

func (s *tieredSummarizer) Tier() Tier { return s.chain[0].Tier() }

func (s *tieredSummarizer) Summarize(ctx context.Context, transcript, personName string, durationSeconds float64) (types.SummaryResult, error) {
	var lastErr error
	for _, p := range s.chain {
		res, err := p.Summarize(ctx, transcript, personName, durationSeconds)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return types.SummaryResult{}, err
		}
		s.log.WithError(err).WithField("tier", string(p.Tier())).Warn("tier unavailable, demoting for this call")
		lastErr = err
	}
	return types.SummaryResult{}, &SummarizationError{Err: lastErr}
}

func (s *tieredSummarizer) SummarizeDay(ctx context.Context, records []types.ConversationRecord) (string, error) {
	var lastErr error
	for _, p := range s.chain {
		out, err := p.SummarizeDay(ctx, records)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return "", err
		}
		s.log.WithError(err).WithField("tier", string(p.Tier())).Warn("tier unavailable, demoting for this call")
		lastErr = err
	}
	return "", &SummarizationError{Err: lastErr}
}
