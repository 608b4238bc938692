package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

// whisperTranscriber talks to a whisper.cpp-style local inference server.
type whisperTranscriber struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func newWhisperTranscriber(baseURL string, timeout time.Duration, log *logger.Logger) *whisperTranscriber {
	return &whisperTranscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.WithComponent("transcriber-local"),
	}
}

func (w *whisperTranscriber) Tier() Tier { return TierLocal }

// available probes the server health endpoint with a short deadline.
func (w *whisperTranscriber) available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words,omitempty"`
	Error string `json:"error,omitempty"`
}

func (w *whisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (types.TranscriptionResult, error) {
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return types.TranscriptionResult{}, fmt.Errorf("%w: building upload: %v", ErrUnavailable, err)
	}
	if _, err := part.Write(audio); err != nil {
		return types.TranscriptionResult{}, fmt.Errorf("%w: building upload: %v", ErrUnavailable, err)
	}
	_ = mw.WriteField("response_format", "json")
	_ = mw.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/inference", &b)
	if err != nil {
		return types.TranscriptionResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return types.TranscriptionResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 {
		return types.TranscriptionResult{}, fmt.Errorf("%w: server error: %s", ErrUnavailable, string(body))
	}
	if resp.StatusCode >= 400 {
		// The server rejected this audio specifically; demotion would
		// not change the input.
		return types.TranscriptionResult{}, &TranscriptionError{Filename: filename, Err: fmt.Errorf("rejected by local model: %s", string(body))}
	}

	var parsed whisperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return types.TranscriptionResult{}, fmt.Errorf("%w: bad response: %v", ErrUnavailable, err)
	}
	if parsed.Error != "" {
		return types.TranscriptionResult{}, &TranscriptionError{Filename: filename, Err: fmt.Errorf("local model: %s", parsed.Error)}
	}

	out := types.TranscriptionResult{
		Text:            strings.TrimSpace(parsed.Text),
		Language:        parsed.Language,
		DurationSeconds: parsed.Duration,
	}
	if out.Language == "" {
		out.Language = "en"
	}
	if out.DurationSeconds == 0 {
		out.DurationSeconds = float64(len(audio)) / assumedByteRate
		out.Estimated = true
	}
	for _, wd := range parsed.Words {
		out.WordTimestamps = append(out.WordTimestamps, types.WordTimestamp{Word: wd.Word, Start: wd.Start, End: wd.End})
	}
	w.log.WithField("chars", len(out.Text)).Debug("local transcription complete")
	return out, nil
}
