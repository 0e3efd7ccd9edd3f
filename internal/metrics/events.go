package metrics

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"sketchlab/internal/repository"
)

// EventType represents the type of activity event
type EventType string

const (
	EventUpload    EventType = "upload"
	EventTransform EventType = "transform"
)

// Recorder writes activity events and aggregates them for /stats.
type Recorder struct {
	queries *repository.Queries
	log     *zap.Logger
	now     func() time.Time
}

// New creates a recorder on top of db. A nil logger discards output.
func New(db repository.DBTX, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		queries: repository.New(db),
		log:     log.Named("metrics"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent inserts an activity event. Failures are logged and returned, but
// callers treat them as non-fatal.
func (r *Recorder) LogEvent(ctx context.Context, eventType EventType, imageID *int64) error {
	var imageIDParam sql.NullInt64
	if imageID != nil {
		imageIDParam = sql.NullInt64{Int64: *imageID, Valid: true}
	}

	err := r.queries.CreateActivityEvent(ctx, repository.CreateActivityEventParams{
		EventType: string(eventType),
		ImageID:   imageIDParam,
		CreatedAt: r.now(),
	})
	if err != nil {
		r.log.Warn("failed to log event", zap.String("event", string(eventType)), zap.Error(err))
	}
	return err
}

// LogUpload logs an image upload event
func (r *Recorder) LogUpload(ctx context.Context, imageID int64) error {
	return r.LogEvent(ctx, EventUpload, &imageID)
}

// LogTransform logs a rotate/flip of a stored image
func (r *Recorder) LogTransform(ctx context.Context, imageID int64) error {
	return r.LogEvent(ctx, EventTransform, &imageID)
}

// Stats holds aggregated metrics
type Stats struct {
	Uploads7Days     int64            `json:"uploads7Days"`
	Uploads30Days    int64            `json:"uploads30Days"`
	Transforms7Days  int64            `json:"transforms7Days"`
	Transforms30Days int64            `json:"transforms30Days"`
	ImagesByKind     map[string]int64 `json:"imagesByKind"`
}

// GetStats retrieves activity statistics
func (r *Recorder) GetStats(ctx context.Context) (*Stats, error) {
	now := r.now()
	sevenDaysAgo := now.Add(-7 * 24 * time.Hour)
	thirtyDaysAgo := now.Add(-30 * 24 * time.Hour)

	stats := &Stats{}
	counters := []struct {
		dst   *int64
		event EventType
		since time.Time
	}{
		{&stats.Uploads7Days, EventUpload, sevenDaysAgo},
		{&stats.Uploads30Days, EventUpload, thirtyDaysAgo},
		{&stats.Transforms7Days, EventTransform, sevenDaysAgo},
		{&stats.Transforms30Days, EventTransform, thirtyDaysAgo},
	}
	for _, c := range counters {
		n, err := r.queries.CountEventsSince(ctx, string(c.event), c.since)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	byKind, err := r.queries.CountImagesByKind(ctx)
	if err != nil {
		return nil, err
	}
	stats.ImagesByKind = byKind

	return stats, nil
}
