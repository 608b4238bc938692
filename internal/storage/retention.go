package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"care-conversations-go/internal/types"
)

// SweepResult counts what one retention pass over a user removed.
type SweepResult struct {
	DeletedRecords    int `json:"deleted_records"`
	DeletedAudioFiles int `json:"deleted_audio_files"`
}

// DeleteOlderThan removes every record (and its audio) whose creation
// timestamp is before now minus ageInMonths calendar months. A partition
// left empty afterwards is removed entirely.
func (e *Engine) DeleteOlderThan(userID string, ageInMonths int) (SweepResult, error) {
	if ageInMonths <= 0 {
		return SweepResult{}, fmt.Errorf("age in months must be positive, got %d", ageInMonths)
	}
	cutoff := time.Now().UTC().AddDate(0, -ageInMonths, 0)
	return e.deleteBefore(userID, cutoff)
}

func (e *Engine) deleteBefore(userID string, cutoff time.Time) (SweepResult, error) {
	var res SweepResult

	userDir := e.userDir(userID)
	entries, err := os.ReadDir(userDir)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, fmt.Errorf("reading user dir: %w", err)
	}

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		partition := filepath.Join(userDir, ent.Name())
		files, err := os.ReadDir(partition)
		if err != nil {
			e.log.WithError(err).WithField("partition", partition).Warn("skipping unreadable partition")
			continue
		}

		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(partition, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				e.log.WithError(err).WithField("path", path).Warn("skipping unreadable record during sweep")
				continue
			}
			var rec types.ConversationRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				e.log.WithError(err).WithField("path", path).Warn("skipping malformed record during sweep")
				continue
			}
			if !rec.Timestamp.Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				e.log.WithError(err).WithField("path", path).Warn("failed to delete expired record")
				continue
			}
			res.DeletedRecords++
			if e.removeAudio(rec) {
				res.DeletedAudioFiles++
			}
		}

		// Drop the partition dir once the sweep has emptied it.
		if remaining, err := os.ReadDir(partition); err == nil && len(remaining) == 0 {
			if err := os.Remove(partition); err != nil {
				e.log.WithError(err).WithField("partition", partition).Warn("failed to remove empty partition")
			}
		}
	}

	return res, nil
}
