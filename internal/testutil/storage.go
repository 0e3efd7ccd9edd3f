package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// SetupTestStorage returns a fresh blob root that is removed after the test.
func SetupTestStorage(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data")
}

// ListFiles returns every regular file under root, relative to it and
// sorted. A missing root yields an empty list.
func ListFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(files)
	return files
}
