// Package scheduler enforces the retention period: a cron-driven sweep
// deletes every user's expired records, with a persisted watermark so a
// process that was down across a scheduled boundary catches up at start.
package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/storage"
)

// staleWatermark forces a catch-up sweep at startup when the last
// completed sweep is this old or missing.
const staleWatermark = 30 * 24 * time.Hour

const watermarkFile = "retention_watermark.json"

// Store is the slice of the storage engine the scheduler needs.
type Store interface {
	Users() ([]string, error)
	DeleteOlderThan(userID string, ageInMonths int) (storage.SweepResult, error)
}

type Scheduler struct {
	store         Store
	months        int
	spec          string
	location      *time.Location
	watermarkPath string
	log           *logger.Logger

	now func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New builds a scheduler sweeping on the given cron expression in the
// given timezone, deleting records older than retentionMonths.
func New(store Store, baseDir, spec, tz string, retentionMonths int, log *logger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}
	if retentionMonths <= 0 {
		return nil, fmt.Errorf("retention months must be positive, got %d", retentionMonths)
	}
	return &Scheduler{
		store:         store,
		months:        retentionMonths,
		spec:          spec,
		location:      loc,
		watermarkPath: filepath.Join(baseDir, watermarkFile),
		log:           log.WithComponent("retention"),
		now:           time.Now,
	}, nil
}

// Start registers the cron entry and, if the watermark is missing or
// older than 30 days, runs one immediate catch-up sweep. Starting an
// already-started scheduler is a safe no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("scheduler already started, ignoring")
		return nil
	}

	c := cron.New(cron.WithLocation(s.location))
	if _, err := c.AddFunc(s.spec, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.spec, err)
	}
	s.cron = c
	s.running = true
	c.Start()
	s.log.WithField("schedule", s.spec).WithField("retention_months", s.months).Info("retention scheduler started")

	if s.needsCatchUp() {
		s.log.Info("watermark missing or stale, running catch-up sweep")
		go s.Sweep()
	}
	return nil
}

// Stop halts the cron loop; an in-progress sweep finishes on its own.
// Stopping an already-stopped scheduler is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.log.Warn("scheduler already stopped, ignoring")
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.running = false
	s.log.Info("retention scheduler stopped")
}

// Sweep runs one full retention pass across all known users. A failure
// on one user is logged and does not abort the rest; the watermark is
// written once the pass completes.
func (s *Scheduler) Sweep() {
	start := s.now()
	users, err := s.store.Users()
	if err != nil {
		s.log.WithError(err).Error("sweep aborted: cannot list users")
		return
	}

	var records, audio int
	for _, user := range users {
		res, err := s.store.DeleteOlderThan(user, s.months)
		if err != nil {
			s.log.WithError(err).WithField("user_id", user).Error("sweep failed for user, continuing")
			continue
		}
		records += res.DeletedRecords
		audio += res.DeletedAudioFiles
	}

	if err := s.writeWatermark(s.now()); err != nil {
		s.log.WithError(err).Error("failed to persist retention watermark")
	}
	s.log.WithField("users", len(users)).
		WithField("deleted_records", records).
		WithField("deleted_audio", audio).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("retention sweep complete")
}

// CleanupUser sweeps one user outside the schedule, for administrative
// use. It neither reads nor resets the watermark.
func (s *Scheduler) CleanupUser(userID string, ageOverrideInMonths int) (storage.SweepResult, error) {
	months := s.months
	if ageOverrideInMonths > 0 {
		months = ageOverrideInMonths
	}
	res, err := s.store.DeleteOlderThan(userID, months)
	if err != nil {
		return storage.SweepResult{}, fmt.Errorf("cleanup for %s: %w", userID, err)
	}
	s.log.WithField("user_id", userID).
		WithField("age_months", months).
		WithField("deleted_records", res.DeletedRecords).
		Info("manual cleanup complete")
	return res, nil
}

type watermark struct {
	LastSweep time.Time `json:"last_sweep"`
}

func (s *Scheduler) needsCatchUp() bool {
	wm, err := s.readWatermark()
	if err != nil {
		return true
	}
	return s.now().Sub(wm.LastSweep) > staleWatermark
}

func (s *Scheduler) readWatermark() (watermark, error) {
	data, err := os.ReadFile(s.watermarkPath)
	if err != nil {
		return watermark{}, err
	}
	var wm watermark
	if err := json.Unmarshal(data, &wm); err != nil {
		return watermark{}, err
	}
	if wm.LastSweep.IsZero() {
		return watermark{}, fmt.Errorf("watermark has no timestamp")
	}
	return wm, nil
}

func (s *Scheduler) writeWatermark(t time.Time) error {
	data, err := json.Marshal(watermark{LastSweep: t.UTC()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.watermarkPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.watermarkPath, data, 0o644)
}
