package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

// remoteTranscriber uploads audio to a hosted transcription service and
// polls for the result: publish -> getstatus -> download.
type remoteTranscriber struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	log     *logger.Logger
}

func newRemoteTranscriber(baseURL string, timeout time.Duration, log *logger.Logger) *remoteTranscriber {
	return &remoteTranscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log.WithComponent("transcriber-remote"),
	}
}

func (r *remoteTranscriber) Tier() Tier { return TierRemote }

type publishResponse struct {
	Code int    `json:"code"`
	Data struct {
		MediaID       string  `json:"media_id"`
		Status        string  `json:"status"`
		Language      string  `json:"language"`
		TranscriptURL string  `json:"transcript_url"`
		Duration      float64 `json:"duration"`
	} `json:"data"`
	Reason string `json:"reason,omitempty"`
}

type statusResponse struct {
	Code int    `json:"code"`
	Data struct {
		Status        string  `json:"status"` // queued, processing, success, failed
		Language      string  `json:"language"`
		TranscriptURL string  `json:"transcript_url"`
		Duration      float64 `json:"duration"`
	} `json:"data"`
	Reason string `json:"reason,omitempty"`
}

func (r *remoteTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (types.TranscriptionResult, error) {
	pub, err := r.publish(ctx, audio, filename)
	if err != nil {
		return types.TranscriptionResult{}, err
	}

	lang := pub.Data.Language
	duration := pub.Data.Duration
	transcriptURL := pub.Data.TranscriptURL

	// Service may answer synchronously for short clips; otherwise poll.
	if transcriptURL == "" || !strings.EqualFold(pub.Data.Status, "success") {
		st, err := r.poll(ctx, pub.Data.MediaID, filename)
		if err != nil {
			return types.TranscriptionResult{}, err
		}
		transcriptURL = st.Data.TranscriptURL
		if st.Data.Language != "" {
			lang = st.Data.Language
		}
		if st.Data.Duration > 0 {
			duration = st.Data.Duration
		}
	}

	text, err := r.download(ctx, transcriptURL)
	if err != nil {
		return types.TranscriptionResult{}, err
	}
	if lang == "" {
		lang = "en"
	}
	out := types.TranscriptionResult{Text: strings.TrimSpace(text), Language: lang, DurationSeconds: duration}
	if out.DurationSeconds == 0 {
		out.DurationSeconds = float64(len(audio)) / assumedByteRate
		out.Estimated = true
	}
	return out, nil
}

func (r *remoteTranscriber) publish(ctx context.Context, audio []byte, filename string) (publishResponse, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("recording", filename)
	if err != nil {
		return publishResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := part.Write(audio); err != nil {
		return publishResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_ = w.Close()
	payload := b.Bytes()

	var resp publishResponse
	err = r.doJSON(func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/transcribe", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}, &resp)
	if err != nil {
		return publishResponse{}, err
	}
	if resp.Code != 200 {
		return publishResponse{}, &TranscriptionError{Filename: filename, Err: fmt.Errorf("publish rejected: code=%d reason=%s", resp.Code, resp.Reason)}
	}
	return resp, nil
}

func (r *remoteTranscriber) poll(ctx context.Context, mediaID, filename string) (statusResponse, error) {
	base := r.baseURL + "/getstatus"
	deadline := time.Now().Add(r.timeout * 4)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return statusResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(1500 * time.Millisecond):
		}

		u, _ := url.Parse(base)
		q := u.Query()
		q.Set("media_id", mediaID)
		u.RawQuery = q.Encode()

		var s statusResponse
		err := r.doJSON(func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}, &s)
		if err != nil {
			r.log.WithError(err).Warn("status poll failed")
			continue
		}

		switch strings.ToLower(s.Data.Status) {
		case "success":
			return s, nil
		case "queued", "processing":
			continue
		case "failed":
			return statusResponse{}, &TranscriptionError{Filename: filename, Err: fmt.Errorf("remote transcription failed: %s", s.Reason)}
		}
	}
	return statusResponse{}, fmt.Errorf("%w: transcription did not complete in time", ErrUnavailable)
}

func (r *remoteTranscriber) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: transcript download failed: %s", ErrUnavailable, string(b))
	}
	return string(b), nil
}

// doJSON posts/gets with exponential backoff, the same retry shape used
// for every remote call in this package. The request is rebuilt per
// attempt so retried uploads re-send their body.
func (r *remoteTranscriber) doJSON(makeReq func() (*http.Request, error), target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.timeout

	var lastErr error
	op := func() error {
		req, err := makeReq()
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if len(body) == 0 {
			lastErr = fmt.Errorf("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return nil
}
