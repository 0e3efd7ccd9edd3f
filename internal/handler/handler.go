// Package handler is the JSON/HTTP surface over the artifact service.
package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sketchlab/internal/artifact"
	"sketchlab/internal/metrics"
)

// DefaultMaxUploadBytes bounds a single uploaded file when Config leaves it
// unset.
const DefaultMaxUploadBytes = 25 << 20

type Handler struct {
	db             *sql.DB
	artifacts      *artifact.Service
	metrics        *metrics.Recorder
	log            *zap.Logger
	validate       *validator.Validate
	maxUploadBytes int64
	writeLimit     func(http.Handler) http.Handler
}

type Config struct {
	DB        *sql.DB
	Artifacts *artifact.Service
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
	// MaxUploadBytes limits the "file" part of an upload.
	MaxUploadBytes int64
	// WriteLimit, when set, wraps every route that stores or rewrites an
	// image (uploads and transformations).
	WriteLimit func(http.Handler) http.Handler
}

func New(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		db:             cfg.DB,
		artifacts:      cfg.Artifacts,
		metrics:        cfg.Metrics,
		log:            log.Named("http"),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: maxUpload,
		writeLimit:     cfg.WriteLimit,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
