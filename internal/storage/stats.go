package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"care-conversations-go/internal/types"
)

// PersonStats aggregates one person partition.
type PersonStats struct {
	Records int   `json:"records"`
	Bytes   int64 `json:"bytes"`
}

// Stats summarizes one user's namespace. Oldest/Newest are zero when the
// user has no parseable records.
type Stats struct {
	TotalRecords int                    `json:"total_records"`
	TotalBytes   int64                  `json:"total_bytes"`
	AudioBytes   int64                  `json:"audio_bytes"`
	Oldest       time.Time              `json:"oldest,omitempty"`
	Newest       time.Time              `json:"newest,omitempty"`
	PerPerson    map[string]PersonStats `json:"per_person"`
}

// Stats walks the user's partitions and audio directory. Record bytes
// are attributed per person; audio bytes are user-level because blobs
// are not person-partitioned on disk.
func (e *Engine) Stats(userID string) (Stats, error) {
	st := Stats{PerPerson: map[string]PersonStats{}}

	userDir := e.userDir(userID)
	entries, err := os.ReadDir(userDir)
	if err != nil && !os.IsNotExist(err) {
		return Stats{}, fmt.Errorf("reading user dir: %w", err)
	}
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		partition := filepath.Join(userDir, ent.Name())
		files, err := os.ReadDir(partition)
		if err != nil {
			continue
		}
		ps := PersonStats{}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			ps.Records++
			ps.Bytes += info.Size()

			data, err := os.ReadFile(filepath.Join(partition, f.Name()))
			if err != nil {
				continue
			}
			var rec types.ConversationRecord
			if json.Unmarshal(data, &rec) != nil || rec.Timestamp.IsZero() {
				continue
			}
			if st.Oldest.IsZero() || rec.Timestamp.Before(st.Oldest) {
				st.Oldest = rec.Timestamp
			}
			if rec.Timestamp.After(st.Newest) {
				st.Newest = rec.Timestamp
			}
		}
		if ps.Records > 0 {
			st.PerPerson[ent.Name()] = ps
			st.TotalRecords += ps.Records
			st.TotalBytes += ps.Bytes
		}
	}

	audioDir := filepath.Join(e.audioDir(), SanitizeSegment(userID))
	audioFiles, err := os.ReadDir(audioDir)
	if err == nil {
		for _, f := range audioFiles {
			if f.IsDir() {
				continue
			}
			if info, err := f.Info(); err == nil {
				st.AudioBytes += info.Size()
			}
		}
	}
	st.TotalBytes += st.AudioBytes

	return st, nil
}

// PersonNames returns the sanitized partition names present for a user,
// sorted for stable output.
func (e *Engine) PersonNames(userID string) ([]string, error) {
	entries, err := os.ReadDir(e.userDir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading user dir: %w", err)
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
