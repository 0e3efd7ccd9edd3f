package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// Image kinds.
const (
	KindSubmission = "submission"
	KindExample    = "example"
	KindTaskPage   = "task_page"
	KindAvatar     = "avatar"
)

type Image struct {
	ID           int64
	Kind         string
	OwnerID      sql.NullString
	MimeType     string
	Width        int64
	Height       int64
	SizeBytes    int64
	HasThumbnail bool
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Annotation struct {
	ID          int64
	ImageID     int64
	Lines       string
	Comment     string
	InvertX     bool
	InvertY     bool
	FlipXY      bool
	SoftDeleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// timestamp scans a DATETIME column. The driver hands back time.Time for
// declared DATETIME columns but plain text for computed ones.
type timestamp struct{ t *time.Time }

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func (s timestamp) Scan(v interface{}) error {
	switch x := v.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = x.UTC()
		return nil
	case []byte:
		return s.parse(string(x))
	case string:
		return s.parse(x)
	}
	return fmt.Errorf("cannot scan %T into timestamp", v)
}

func (s timestamp) parse(v string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", v)
}
