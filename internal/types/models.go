package types

import "time"

// Processing status of a conversation record.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Sentiment categories.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// EmotionScore is one detected emotion with a confidence in [0,1].
type EmotionScore struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// ConversationRecord is one processed conversation as persisted on disk.
// Timestamp is serialized as RFC 3339 and is the sort/retention key.
// Records are immutable after the first write except for Notes/Metadata
// updates and deletion.
type ConversationRecord struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	PersonName string `json:"person_name"`

	Transcript     string            `json:"transcript"`
	Summary        string            `json:"summary"`
	KeyTopics      []string          `json:"key_topics"`
	Emotions       []EmotionScore    `json:"emotions"`
	Sentiment      string            `json:"sentiment"`
	SentimentScore float64           `json:"sentiment_score"`
	Keywords       []string          `json:"keywords"`
	Notes          string            `json:"notes,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	AudioPath       string  `json:"audio_path,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Language        string  `json:"language"`
	Status          string  `json:"status"`
	ProcessingError string  `json:"processing_error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// WordTimestamp is one word with its offsets in seconds from audio start.
type WordTimestamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptionResult is what a transcription provider returns.
type TranscriptionResult struct {
	Text            string          `json:"text"`
	WordTimestamps  []WordTimestamp `json:"word_timestamps,omitempty"`
	Language        string          `json:"language"`
	DurationSeconds float64         `json:"duration_seconds"`
	// Estimated marks a duration derived from byte length rather than
	// decoded audio.
	Estimated bool `json:"estimated,omitempty"`
}

// SummaryResult is the structured output of a summarization provider.
type SummaryResult struct {
	Summary          string   `json:"summary"`
	KeyTopics        []string `json:"key_topics"`
	Sentiment        string   `json:"sentiment"`
	SentimentScore   float64  `json:"sentiment_score"`
	ImportantDetails []string `json:"important_details"`
	ActionItems      []string `json:"action_items"`
}

// ConversationResult is the merged output of one pipeline invocation.
// It carries no storage identity; persisting it is the caller's job.
type ConversationResult struct {
	Status          string              `json:"status"`
	Transcription   TranscriptionResult `json:"transcription"`
	Summary         SummaryResult       `json:"summary"`
	Keywords        []string            `json:"keywords"`
	Emotions        []EmotionScore      `json:"emotions"`
	Error           string              `json:"error,omitempty"`
	ProcessingMs    int64               `json:"processing_ms"`
	TranscriberTier string              `json:"transcriber_tier"`
	SummarizerTier  string              `json:"summarizer_tier"`
}
