package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

func newOllamaTestServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3.1"}]}`))
		case "/api/chat":
			var req ollamaChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.False(t, req.Stream)
			resp := ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: content}}
			json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaSummarizer_StructuredResponse(t *testing.T) {
	srv := newOllamaTestServer(t, `{"summary":"A pleasant talk about lunch.","key_topics":["food"],"sentiment":"positive","sentiment_score":0.5,"important_details":["Mary is visiting Sunday"],"action_items":[]}`)
	defer srv.Close()

	s := newOllamaSummarizer(srv.URL, "llama3.1", 5*time.Second, logger.New())
	assert.True(t, s.available(context.Background()))

	res, err := s.Summarize(context.Background(), "we talked about lunch", "Mary", 42)
	require.NoError(t, err)
	assert.Equal(t, "A pleasant talk about lunch.", res.Summary)
	assert.Equal(t, []string{"food"}, res.KeyTopics)
	assert.Equal(t, types.SentimentPositive, res.Sentiment)
	assert.Equal(t, []string{"Mary is visiting Sunday"}, res.ImportantDetails)
}

func TestOllamaSummarizer_ParseFailureDegradesInCall(t *testing.T) {
	srv := newOllamaTestServer(t, "I could not produce JSON today, sorry.")
	defer srv.Close()

	s := newOllamaSummarizer(srv.URL, "llama3.1", 5*time.Second, logger.New())
	res, err := s.Summarize(context.Background(), "hello", "Mary", 10)
	require.NoError(t, err, "parse failure is recoverable, not fatal")
	assert.Equal(t, "I could not produce JSON today, sorry.", res.Summary)
	assert.Equal(t, types.SentimentNeutral, res.Sentiment)
}

func TestOllamaSummarizer_ServerDownIsUnavailable(t *testing.T) {
	s := newOllamaSummarizer("http://127.0.0.1:1", "llama3.1", time.Second, logger.New())
	_, err := s.Summarize(context.Background(), "hello", "Mary", 10)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, s.available(context.Background()))
}

func TestOllamaSummarizer_DailyNarrative(t *testing.T) {
	srv := newOllamaTestServer(t, "Today you spoke with Mary about lunch. It was a lovely day.\n")
	defer srv.Close()

	s := newOllamaSummarizer(srv.URL, "llama3.1", 5*time.Second, logger.New())
	out, err := s.SummarizeDay(context.Background(), []types.ConversationRecord{{PersonName: "Mary", Summary: "lunch"}})
	require.NoError(t, err)
	assert.Equal(t, "Today you spoke with Mary about lunch. It was a lovely day.", out)
}
