package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-conversations-go/internal/logger"
)

func TestWhisperTranscriber_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/inference":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, _, err := r.FormFile("file")
			require.NoError(t, err)
			w.Write([]byte(`{"text":" hello there ","language":"en","duration":3.5}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr := newWhisperTranscriber(srv.URL, 5*time.Second, logger.New())
	assert.True(t, tr.available(context.Background()))

	res, err := tr.Transcribe(context.Background(), []byte("fake-audio"), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Text)
	assert.Equal(t, 3.5, res.DurationSeconds)
	assert.False(t, res.Estimated)
}

func TestWhisperTranscriber_ClientErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported codec", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	tr := newWhisperTranscriber(srv.URL, 5*time.Second, logger.New())
	_, err := tr.Transcribe(context.Background(), []byte("fake"), "a.ogg")
	var terr *TranscriptionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "a.ogg", terr.Filename)
}

func TestWhisperTranscriber_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := newWhisperTranscriber(srv.URL, 5*time.Second, logger.New())
	_, err := tr.Transcribe(context.Background(), []byte("fake"), "a.wav")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestWhisperTranscriber_DownProbe(t *testing.T) {
	tr := newWhisperTranscriber("http://127.0.0.1:1", time.Second, logger.New())
	assert.False(t, tr.available(context.Background()))
}

func TestWhisperTranscriber_MissingDurationEstimated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"short"}`))
	}))
	defer srv.Close()

	tr := newWhisperTranscriber(srv.URL, 5*time.Second, logger.New())
	res, err := tr.Transcribe(context.Background(), make([]byte, 32000), "a.wav")
	require.NoError(t, err)
	assert.True(t, res.Estimated)
	assert.Equal(t, 1.0, res.DurationSeconds)
	assert.Equal(t, "en", res.Language)
}
