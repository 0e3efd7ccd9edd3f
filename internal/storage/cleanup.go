package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cleanup tracks written paths so they can be removed again.
type Cleanup struct {
	paths []string
}

// Add registers a path for later cleanup.
func (c *Cleanup) Add(path string) {
	c.paths = append(c.paths, path)
}

// Paths returns the registered paths.
func (c *Cleanup) Paths() []string {
	return append([]string(nil), c.paths...)
}

// Execute removes all registered paths. It is safe to call multiple times.
// Returns the first non-ignorable error encountered, or nil.
func (c *Cleanup) Execute() error {
	var firstErr error
	for _, p := range c.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.paths = nil
	return firstErr
}

// Forget drops all registered paths without removing them.
func (c *Cleanup) Forget() {
	c.paths = nil
}

// CleanOrphanedTempFiles removes AtomicWrite temp files older than maxAge
// anywhere under root. Such files are left behind only when the process
// dies mid-write. It returns the number of files removed.
func CleanOrphanedTempFiles(root string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), TempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}
