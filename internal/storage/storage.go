// Package storage persists conversation records and audio blobs under a
// person-partitioned directory tree:
//
//	<base>/conversations/<userId>/<sanitizedPersonName>/<recordId>.json
//	<base>/audio/<userId>/<sanitizedFilename>
//
// There is no cross-process locking; record ids are unique per write and
// readers tolerate partial listings, which is enough for this domain.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type Engine struct {
	base string
	log  *logger.Logger
}

// New creates the base subtrees if absent and returns an engine rooted
// at baseDir.
func New(baseDir string, log *logger.Logger) (*Engine, error) {
	e := &Engine{base: baseDir, log: log.WithComponent("storage")}
	for _, dir := range []string{e.conversationsDir(), e.audioDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage dir %s: %w", dir, err)
		}
	}
	return e, nil
}

func (e *Engine) conversationsDir() string { return filepath.Join(e.base, "conversations") }
func (e *Engine) audioDir() string         { return filepath.Join(e.base, "audio") }

func (e *Engine) userDir(userID string) string {
	return filepath.Join(e.conversationsDir(), SanitizeSegment(userID))
}

func (e *Engine) partitionDir(userID, personName string) string {
	return filepath.Join(e.userDir(userID), SanitizeSegment(personName))
}

// SanitizeSegment maps an arbitrary name onto a filesystem-safe path
// segment: every character outside [A-Za-z0-9._-] becomes '_'. The
// mapping is idempotent so repeated calls agree.
func SanitizeSegment(name string) string {
	if name == "" {
		return "unknown"
	}
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	// A segment of only dots would escape or hide the partition.
	if strings.Trim(out, ".") == "" {
		return "unknown"
	}
	return out
}

// NewRecordID builds an id from a millisecond timestamp plus a random
// suffix, making collisions between concurrent writers practically
// impossible while keeping ids roughly sortable.
func NewRecordID(now time.Time) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), uuid.New().String()[:8])
}

// Save writes one record into its person partition and returns the
// persisted record. A record with an id that already exists on disk is
// rejected rather than overwritten.
func (e *Engine) Save(userID string, rec types.ConversationRecord) (types.ConversationRecord, error) {
	if userID == "" {
		return types.ConversationRecord{}, fmt.Errorf("user id is required")
	}
	now := time.Now().UTC()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	if rec.ID == "" {
		rec.ID = NewRecordID(rec.Timestamp)
	}
	rec.UserID = userID

	dir := e.partitionDir(userID, rec.PersonName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.ConversationRecord{}, fmt.Errorf("creating partition: %w", err)
	}

	path := filepath.Join(dir, rec.ID+".json")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return types.ConversationRecord{}, fmt.Errorf("record %s already exists", rec.ID)
		}
		return types.ConversationRecord{}, fmt.Errorf("creating record file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		f.Close()
		os.Remove(path)
		return types.ConversationRecord{}, fmt.Errorf("writing record: %w", err)
	}
	if err := f.Close(); err != nil {
		return types.ConversationRecord{}, fmt.Errorf("closing record file: %w", err)
	}

	e.log.WithField("record_id", rec.ID).WithField("user_id", userID).Debug("record saved")
	return rec, nil
}

// SaveAudio stores an audio blob under the user's audio directory and
// returns the path. A name collision gets a timestamp prefix instead of
// overwriting the existing blob.
func (e *Engine) SaveAudio(userID, filename string, data []byte) (string, error) {
	dir := filepath.Join(e.audioDir(), SanitizeSegment(userID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio dir: %w", err)
	}

	name := SanitizeSegment(filepath.Base(filename))
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		name = fmt.Sprintf("%d_%s", time.Now().UnixMilli(), name)
		path = filepath.Join(dir, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	return path, nil
}

// ListResult is one page of records plus paging metadata.
type ListResult struct {
	Records []types.ConversationRecord `json:"records"`
	Total   int                        `json:"total"`
	HasMore bool                       `json:"has_more"`
}

// List enumerates the user's partitions (optionally restricted to one
// person), newest first. An unparseable record file is logged and
// skipped; it never fails the whole listing.
func (e *Engine) List(userID, personFilter string, limit, offset int) (ListResult, error) {
	var partitions []string
	if personFilter != "" {
		partitions = append(partitions, e.partitionDir(userID, personFilter))
	} else {
		entries, err := os.ReadDir(e.userDir(userID))
		if err != nil {
			if os.IsNotExist(err) {
				return ListResult{Records: []types.ConversationRecord{}}, nil
			}
			return ListResult{}, fmt.Errorf("reading user dir: %w", err)
		}
		for _, ent := range entries {
			if ent.IsDir() {
				partitions = append(partitions, filepath.Join(e.userDir(userID), ent.Name()))
			}
		}
	}

	records := []types.ConversationRecord{}
	for _, dir := range partitions {
		recs, err := e.readPartition(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return ListResult{}, err
		}
		records = append(records, recs...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	total := len(records)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	page := records[offset:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return ListResult{
		Records: page,
		Total:   total,
		HasMore: offset+len(page) < total,
	}, nil
}

// readPartition loads every parseable record file in one partition dir.
func (e *Engine) readPartition(dir string) ([]types.ConversationRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []types.ConversationRecord
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			e.log.WithError(err).WithField("path", path).Warn("skipping unreadable record file")
			continue
		}
		var rec types.ConversationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			e.log.WithError(err).WithField("path", path).Warn("skipping malformed record file")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get scans the user's partitions for a record id. There is no secondary
// index at this scale.
func (e *Engine) Get(userID, recordID string) (types.ConversationRecord, error) {
	path, err := e.findRecordPath(userID, recordID)
	if err != nil {
		return types.ConversationRecord{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ConversationRecord{}, fmt.Errorf("reading record: %w", err)
	}
	var rec types.ConversationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.ConversationRecord{}, fmt.Errorf("parsing record %s: %w", recordID, err)
	}
	return rec, nil
}

func (e *Engine) findRecordPath(userID, recordID string) (string, error) {
	entries, err := os.ReadDir(e.userDir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading user dir: %w", err)
	}
	fname := recordID + ".json"
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		candidate := filepath.Join(e.userDir(userID), ent.Name(), fname)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

// Delete removes the record file and its audio blob when the record owns
// one. A missing record is ErrNotFound, not a silent no-op.
func (e *Engine) Delete(userID, recordID string) error {
	rec, err := e.Get(userID, recordID)
	if err != nil {
		return err
	}
	path, err := e.findRecordPath(userID, recordID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	e.removeAudio(rec)
	return nil
}

// removeAudio deletes the record's audio blob if it lives inside this
// engine's audio tree. Already-gone blobs are fine.
func (e *Engine) removeAudio(rec types.ConversationRecord) bool {
	if rec.AudioPath == "" {
		return false
	}
	absAudio, err := filepath.Abs(e.audioDir())
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(rec.AudioPath)
	if err != nil {
		return false
	}
	if !strings.HasPrefix(absPath, absAudio+string(filepath.Separator)) {
		e.log.WithField("path", rec.AudioPath).Warn("audio path outside storage tree, not deleting")
		return false
	}
	if err := os.Remove(absPath); err != nil {
		if !os.IsNotExist(err) {
			e.log.WithError(err).WithField("path", absPath).Warn("failed to delete audio blob")
		}
		return false
	}
	return true
}

// UpdateNotes rewrites only the mutable fields of a stored record.
// Transcript and summary stay immutable after the first write.
func (e *Engine) UpdateNotes(userID, recordID, notes string, metadata map[string]string) (types.ConversationRecord, error) {
	rec, err := e.Get(userID, recordID)
	if err != nil {
		return types.ConversationRecord{}, err
	}
	path, err := e.findRecordPath(userID, recordID)
	if err != nil {
		return types.ConversationRecord{}, err
	}
	rec.Notes = notes
	if metadata != nil {
		rec.Metadata = metadata
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return types.ConversationRecord{}, fmt.Errorf("encoding record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.ConversationRecord{}, fmt.Errorf("rewriting record: %w", err)
	}
	return rec, nil
}

// Users lists every user id that has a conversations partition.
func (e *Engine) Users() ([]string, error) {
	entries, err := os.ReadDir(e.conversationsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading conversations dir: %w", err)
	}
	var users []string
	for _, ent := range entries {
		if ent.IsDir() {
			users = append(users, ent.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

// WipeUser removes a user's entire namespace: every partition and every
// audio blob.
func (e *Engine) WipeUser(userID string) error {
	if err := os.RemoveAll(e.userDir(userID)); err != nil {
		return fmt.Errorf("wiping conversations: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(e.audioDir(), SanitizeSegment(userID))); err != nil {
		return fmt.Errorf("wiping audio: %w", err)
	}
	return nil
}
