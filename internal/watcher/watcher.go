// Package watcher observes the audio directory tree and feeds newly
// dropped recordings into the processing pipeline. The owning user id is
// the first path segment beneath the watched root; the filesystem
// carries no person metadata, so ingestion uses a placeholder name.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"care-conversations-go/internal/logger"
)

// audioExtensions are the only files the watcher picks up.
var audioExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".m4a": true,
	".ogg": true,
}

// settleDelay gives the writer a moment to finish the file after the
// create event fires before we read it.
const settleDelay = 200 * time.Millisecond

// IngestFunc processes one detected audio file. Errors are logged with
// the path and never stop the watcher.
type IngestFunc func(ctx context.Context, userID, path string, audio []byte) error

type Watcher struct {
	root     string
	maxDepth int
	ingest   IngestFunc
	log      *logger.Logger

	fs   *fsnotify.Watcher
	jobs chan string

	mu   sync.Mutex
	seen map[string]bool

	workers sync.WaitGroup
	loop    sync.WaitGroup
	stopped bool
}

// New creates a watcher over root. Directories nested deeper than
// maxDepth below the root are ignored.
func New(root string, maxDepth int, ingest IngestFunc, log *logger.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     filepath.Clean(root),
		maxDepth: maxDepth,
		ingest:   ingest,
		log:      log.WithComponent("watcher"),
		fs:       fs,
		jobs:     make(chan string, 64),
		seen:     map[string]bool{},
	}, nil
}

// Start registers the existing directory tree and launches the event
// loop plus workers. Files already present at startup are not
// re-ingested; only files appearing afterwards are.
func (w *Watcher) Start(workerCount int) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return err
	}
	if err := w.addTree(w.root, false); err != nil {
		return err
	}

	if workerCount <= 0 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		w.workers.Add(1)
		go w.worker()
	}
	w.loop.Add(1)
	go w.run()
	w.log.WithField("root", w.root).WithField("workers", workerCount).Info("ingestion watcher started")
	return nil
}

// Stop closes intake and waits for in-flight processing to finish:
// work already dispatched is allowed to complete rather than being
// cancelled with the watcher.
func (w *Watcher) Stop() {
	if w.stopped {
		return
	}
	w.stopped = true
	_ = w.fs.Close()
	w.loop.Wait()
	close(w.jobs)
	w.workers.Wait()
	w.log.Info("ingestion watcher stopped")
}

func (w *Watcher) run() {
	defer w.loop.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			w.handleCreate(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) handleCreate(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		// New directory: watch it and pick up files that landed before
		// the watch was in place.
		if err := w.addTree(path, true); err != nil {
			w.log.WithError(err).WithField("path", path).Warn("failed to watch new directory")
		}
		return
	}
	w.dispatch(path)
}

// addTree watches dir and every subdirectory within the depth bound.
// With scanFiles set, files already inside are dispatched too, which
// closes the race between a directory appearing and its watch starting.
func (w *Watcher) addTree(dir string, scanFiles bool) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.depthOf(path) > w.maxDepth {
				return filepath.SkipDir
			}
			if err := w.fs.Add(path); err != nil {
				w.log.WithError(err).WithField("path", path).Warn("failed to add watch")
			}
			return nil
		}
		if scanFiles {
			w.dispatch(path)
		}
		return nil
	})
}

// depthOf counts path segments below the watched root.
func (w *Watcher) depthOf(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func (w *Watcher) dispatch(path string) {
	if !audioExtensions[strings.ToLower(filepath.Ext(path))] {
		return
	}
	if w.depthOf(path) > w.maxDepth+1 {
		return
	}
	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	select {
	case w.jobs <- path:
	default:
		w.log.WithField("path", path).Warn("ingest queue full, dropping file event")
		w.mu.Lock()
		delete(w.seen, path)
		w.mu.Unlock()
	}
}

func (w *Watcher) worker() {
	defer w.workers.Done()
	for path := range w.jobs {
		w.process(path)
	}
}

func (w *Watcher) process(path string) {
	log := w.log.WithField("path", path)

	userID, ok := w.userFor(path)
	if !ok {
		log.Warn("audio file outside a user directory, skipping")
		return
	}

	time.Sleep(settleDelay)
	audio, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Error("failed to read detected audio")
		return
	}

	// Processing deliberately uses a background context: stopping the
	// watcher does not cancel work that is already underway.
	if err := w.ingest(context.Background(), userID, path, audio); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("ingestion failed for file")
		return
	}
	log.WithField("user_id", userID).Info("file ingested")
}

// userFor derives the owning user from the first path segment beneath
// the watched root.
func (w *Watcher) userFor(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 || parts[0] == "." || parts[0] == ".." {
		return "", false
	}
	return parts[0], true
}
