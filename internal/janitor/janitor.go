package janitor

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sketchlab/internal/repository"
	"sketchlab/internal/storage"
)

const (
	// tempFileMaxAge is how long an AtomicWrite temp file may live.
	tempFileMaxAge = 15 * time.Minute
	// blobGrace protects blobs of an in-flight transaction: a blob newer
	// than the row's version, or one without a row yet, is only collected
	// once it is older than this.
	blobGrace = 15 * time.Minute
	// eventRetention is how long activity events are kept.
	eventRetention = 90 * 24 * time.Hour
)

// Janitor handles periodic cleanup of stale events and unreferenced blobs.
type Janitor struct {
	queries     *repository.Queries
	storagePath string
	interval    time.Duration
	log         *zap.Logger
	now         func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// Config holds janitor configuration
type Config struct {
	DB          *sql.DB
	StoragePath string
	Interval    time.Duration
	Logger      *zap.Logger
}

// Report summarizes one cleanup cycle.
type Report struct {
	Events    int64
	TempFiles int
	Blobs     int
	Dirs      int
}

// New creates a new Janitor instance
func New(cfg Config) *Janitor {
	if cfg.Interval == 0 {
		cfg.Interval = 6 * time.Hour
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Janitor{
		queries:     repository.New(cfg.DB),
		storagePath: cfg.StoragePath,
		interval:    cfg.Interval,
		log:         log.Named("janitor"),
		now:         time.Now,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start begins the cleanup scheduler in a goroutine
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// Stop gracefully stops the janitor and waits for a running cycle to end.
// It must only be called after Start.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	<-j.doneChan
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneChan)

	// Run cleanup immediately on startup
	j.RunOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopChan:
			j.log.Info("received stop signal, shutting down")
			return
		case <-ctx.Done():
			j.log.Info("context cancelled, shutting down")
			return
		}
	}
}

// RunOnce executes all cleanup tasks. Each task logs its own failure and
// does not stop the others.
func (j *Janitor) RunOnce(ctx context.Context) Report {
	start := j.now()
	var r Report

	r.Events = j.deleteOldActivityEvents(ctx)
	r.TempFiles = j.cleanupTempFiles()
	r.Blobs = j.deleteStaleBlobs(ctx)
	r.Dirs = j.cleanupEmptyDirs()

	j.log.Info("cleanup cycle completed",
		zap.Duration("duration", j.now().Sub(start)),
		zap.Int64("events", r.Events),
		zap.Int("temp_files", r.TempFiles),
		zap.Int("blobs", r.Blobs),
		zap.Int("dirs", r.Dirs))
	return r
}

func (j *Janitor) deleteOldActivityEvents(ctx context.Context) int64 {
	n, err := j.queries.DeleteOldActivityEvents(ctx, j.now().UTC().Add(-eventRetention))
	if err != nil {
		j.log.Error("failed to delete old activity events", zap.Error(err))
		return 0
	}
	return n
}

func (j *Janitor) cleanupTempFiles() int {
	n, err := storage.CleanOrphanedTempFiles(j.storagePath, tempFileMaxAge)
	if err != nil {
		j.log.Error("failed to cleanup temp files", zap.Error(err))
	}
	return n
}

func (j *Janitor) imagesDir() string {
	return filepath.Join(j.storagePath, "images")
}

// deleteStaleBlobs removes blob files no row points at: superseded
// versions, leftovers of failed writes and blobs of deleted images.
func (j *Janitor) deleteStaleBlobs(ctx context.Context) int {
	images, err := j.queries.ListImages(ctx)
	if err != nil {
		j.log.Error("failed to list images", zap.Error(err))
		return 0
	}
	current := make(map[string]int64, len(images))
	for _, img := range images {
		current[blobKey(img.Kind, img.ID)] = img.Version
	}

	root := j.imagesDir()
	cutoff := j.now().Add(-blobGrace)
	removed := 0

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		version, _, ok := storage.ParseVersionedName(d.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil
		}

		cur, known := current[blobKey(parts[0], id)]
		stale := known && version < cur
		if !stale && (!known || version > cur) {
			info, err := d.Info()
			stale = err == nil && info.ModTime().Before(cutoff)
		}
		if !stale {
			return nil
		}
		if err := os.Remove(path); err != nil {
			j.log.Warn("failed to delete stale blob", zap.String("path", path), zap.Error(err))
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		j.log.Error("failed to walk blob directory", zap.Error(err))
	}
	return removed
}

func blobKey(kind string, id int64) string {
	return kind + "/" + strconv.FormatInt(id, 10)
}

// cleanupEmptyDirs removes empty directories below the images directory,
// deepest first so emptied parents go in the same pass.
func (j *Janitor) cleanupEmptyDirs() int {
	root := j.imagesDir()
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(a, b int) bool { return len(dirs[a]) > len(dirs[b]) })

	removed := 0
	for _, dir := range dirs {
		// fails unless empty
		if err := os.Remove(dir); err == nil {
			removed++
		}
	}
	return removed
}
