package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ThumbnailExt is the extension of every thumbnail blob.
const ThumbnailExt = "jpg"

// ImagePathAt returns the storage path for one version of an image's
// primary blob:
// {baseDir}/images/{kind}/{image_id}/v{version}.{ext}
// Every content change bumps the version, so a path is never overwritten.
func ImagePathAt(baseDir, kind string, imageID, version int64, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return filepath.Join(ImageDir(baseDir, kind, imageID), fmt.Sprintf("v%d.%s", version, ext))
}

// ThumbnailPathAt returns the thumbnail path next to the primary blob of
// the same version, with a _thumb suffix.
func ThumbnailPathAt(baseDir, kind string, imageID, version int64) string {
	p := ImagePathAt(baseDir, kind, imageID, version, ThumbnailExt)
	ext := filepath.Ext(p)
	without := strings.TrimSuffix(p, ext)
	return fmt.Sprintf("%s_thumb%s", without, ext)
}

// ImageDir is the directory holding every version of one image.
func ImageDir(baseDir, kind string, imageID int64) string {
	return filepath.Join(baseDir, "images", kind, strconv.FormatInt(imageID, 10))
}

var versionedName = regexp.MustCompile(`^v(\d+)(_thumb)?\.[a-z0-9]+$`)

// ParseVersionedName extracts the version from a blob file name produced by
// ImagePathAt or ThumbnailPathAt. ok is false for anything else.
func ParseVersionedName(name string) (version int64, thumbnail bool, ok bool) {
	m := versionedName.FindStringSubmatch(name)
	if m == nil {
		return 0, false, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false, false
	}
	return v, m[2] != "", true
}
