package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the service reads from the environment.
// Call Load once in main (after godotenv) and pass the struct down;
// nothing else reads os.Getenv.
type Config struct {
	// Storage
	BaseDir  string // root for conversations/ and audio/ subtrees
	WatchDir string // audio tree observed by the ingestion watcher

	// Retention
	RetentionMonths   int
	RetentionSchedule string // cron expression
	RetentionTZ       string

	// Providers
	WhisperURL      string // local speech-to-text server, empty = absent
	TranscribeURL   string // remote transcription service, empty = absent
	OllamaURL       string // local LLM server, empty = absent
	LLMGatewayURL   string // remote chat-completions gateway, empty = absent
	LLMAPIKey       string
	LLMModel        string
	ProviderTimeout time.Duration

	// Ingestion
	MaxAudioBytes int64
	WatchDepth    int
	WorkerCount   int
}

// Load reads configuration from the environment, applying defaults for
// anything unset. It fails only on values that parse but make no sense
// (e.g. a negative retention age).
func Load() (Config, error) {
	cfg := Config{
		BaseDir:           envOr("STORAGE_BASE_DIR", "./data"),
		WatchDir:          os.Getenv("AUDIO_WATCH_DIR"),
		RetentionMonths:   6,
		RetentionSchedule: envOr("RETENTION_SCHEDULE", "0 0 1 * *"), // first of each month
		RetentionTZ:       envOr("RETENTION_TZ", "UTC"),
		WhisperURL:        os.Getenv("WHISPER_URL"),
		TranscribeURL:     os.Getenv("TRANSCRIBE_URL"),
		OllamaURL:         os.Getenv("OLLAMA_URL"),
		LLMGatewayURL:     os.Getenv("LLM_GATEWAY_URL"),
		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMModel:          envOr("LLM_MODEL", "llama3.1"),
		ProviderTimeout:   25 * time.Second,
		MaxAudioBytes:     50 << 20,
		WatchDepth:        3,
		WorkerCount:       2,
	}

	if v := os.Getenv("RETENTION_MONTHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("RETENTION_MONTHS must be a positive integer, got %q", v)
		}
		cfg.RetentionMonths = n
	}
	if v := os.Getenv("PROVIDER_TIMEOUT_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("PROVIDER_TIMEOUT_SEC must be a positive integer, got %q", v)
		}
		cfg.ProviderTimeout = time.Duration(n) * time.Second
	}
	if v := os.Getenv("MAX_AUDIO_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_AUDIO_MB must be a positive integer, got %q", v)
		}
		cfg.MaxAudioBytes = int64(n) << 20
	}
	if v := os.Getenv("WATCH_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("WATCH_DEPTH must be a positive integer, got %q", v)
		}
		cfg.WatchDepth = n
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("WORKER_COUNT must be a positive integer, got %q", v)
		}
		cfg.WorkerCount = n
	}

	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
