package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// Storage owns the blob directory. Paths handed out are absolute under
// BaseDir.
type Storage struct {
	BaseDir string
}

// New creates a new Storage instance with the provided base directory.
func New(baseDir string) *Storage {
	return &Storage{BaseDir: baseDir}
}

// ImagePath is ImagePathAt rooted at s.BaseDir.
func (s *Storage) ImagePath(kind string, imageID, version int64, ext string) string {
	return ImagePathAt(s.BaseDir, kind, imageID, version, ext)
}

// ThumbnailPath is ThumbnailPathAt rooted at s.BaseDir.
func (s *Storage) ThumbnailPath(kind string, imageID, version int64) string {
	return ThumbnailPathAt(s.BaseDir, kind, imageID, version)
}

// Blob is one file to be written.
type Blob struct {
	Path string
	Data []byte
}

// WriteAll writes every blob atomically. If any write fails the blobs
// already written are removed again and the first error is returned. On
// success the returned Cleanup holds every written path, so the caller can
// still roll them back when a later step (e.g. a DB commit) fails.
func (s *Storage) WriteAll(blobs ...Blob) (*Cleanup, error) {
	written := &Cleanup{}
	for _, b := range blobs {
		if err := AtomicWrite(b.Path, bytes.NewReader(b.Data)); err != nil {
			if cerr := written.Execute(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("rollback written blobs: %w", cerr))
			}
			return nil, fmt.Errorf("write %s: %w", b.Path, err)
		}
		written.Add(b.Path)
	}
	return written, nil
}

// Read returns the content of a blob.
func (s *Storage) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove deletes paths, ignoring the ones already gone.
func (s *Storage) Remove(paths ...string) error {
	var c Cleanup
	for _, p := range paths {
		c.Add(p)
	}
	return c.Execute()
}

// RemoveImage deletes every version of an image.
func (s *Storage) RemoveImage(kind string, imageID int64) error {
	return os.RemoveAll(ImageDir(s.BaseDir, kind, imageID))
}
