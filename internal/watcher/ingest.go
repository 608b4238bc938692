package watcher

import (
	"context"
	"fmt"
	"path/filepath"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/pipeline"
	"care-conversations-go/internal/storage"
)

// placeholderPerson is used for auto-ingested recordings; the directory
// tree carries no person metadata.
const placeholderPerson = "Unknown"

// NewIngest wires the canonical ingestion behavior: run the pipeline,
// copy the audio into the storage engine's audio tree, persist the
// record. A failed pipeline run still persists a failed record so the
// conversation stays visible.
func NewIngest(p *pipeline.Pipeline, store *storage.Engine, log *logger.Logger) IngestFunc {
	log = log.WithComponent("ingest")
	return func(ctx context.Context, userID, path string, audio []byte) error {
		filename := filepath.Base(path)

		res, procErr := p.Process(ctx, audio, filename, placeholderPerson)

		audioPath, err := store.SaveAudio(userID, filename, audio)
		if err != nil {
			return fmt.Errorf("saving audio for %s: %w", filename, err)
		}

		rec := pipeline.NewRecord(userID, placeholderPerson, audioPath, res)
		saved, err := store.Save(userID, rec)
		if err != nil {
			return fmt.Errorf("saving record for %s: %w", filename, err)
		}

		entry := log.WithField("record_id", saved.ID).WithField("user_id", userID)
		if procErr != nil {
			entry.WithError(procErr).Warn("ingested with failed processing")
		} else {
			entry.Debug("ingested")
		}
		return nil
	}
}
