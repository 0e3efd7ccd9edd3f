package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sketchlab/internal/artifact"
)

// maxAnnotationBody bounds the JSON body of a new annotation.
const maxAnnotationBody = 4 << 20

type createAnnotationRequest struct {
	Lines   json.RawMessage `json:"lines" validate:"max=2097152"`
	Comment string          `json:"comment" validate:"max=4000"`
}

// updateAnnotationRequest is a partial edit; omitted fields are left as they are.
type updateAnnotationRequest struct {
	Lines       json.RawMessage `json:"lines" validate:"max=2097152"`
	Comment     *string         `json:"comment" validate:"omitnil,max=4000"`
	SoftDeleted *bool           `json:"softDeleted"`
}

type annotationResponse struct {
	ID          int64           `json:"id"`
	ImageID     int64           `json:"imageId"`
	Lines       json.RawMessage `json:"lines"`
	Comment     string          `json:"comment"`
	InvertX     bool            `json:"invertX"`
	InvertY     bool            `json:"invertY"`
	FlipXY      bool            `json:"flipXY"`
	Orientation string          `json:"orientation"`
	SoftDeleted bool            `json:"softDeleted"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func newAnnotationResponse(a *artifact.Annotation) annotationResponse {
	axes := a.Orientation.Axes()
	return annotationResponse{
		ID:          a.ID,
		ImageID:     a.ImageID,
		Lines:       a.Lines,
		Comment:     a.Comment,
		InvertX:     axes.InvertX,
		InvertY:     axes.InvertY,
		FlipXY:      axes.SwapAxes,
		Orientation: a.Orientation.String(),
		SoftDeleted: a.SoftDeleted,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	includeDeleted, ok := h.includeDeleted(w, r)
	if !ok {
		return
	}
	annotations, err := h.artifacts.Annotations(r.Context(), id, includeDeleted)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := make([]annotationResponse, 0, len(annotations))
	for i := range annotations {
		resp = append(resp, newAnnotationResponse(&annotations[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	var req createAnnotationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnnotationBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.artifacts.AddAnnotation(r.Context(), id, req.Lines, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAnnotationResponse(a))
}

func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	id, annotationID, ok := h.annotationIDs(w, r)
	if !ok {
		return
	}
	includeDeleted, ok := h.includeDeleted(w, r)
	if !ok {
		return
	}
	a, err := h.artifacts.Annotation(r.Context(), id, annotationID, includeDeleted)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnnotationResponse(a))
}

func (h *Handler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	id, annotationID, ok := h.annotationIDs(w, r)
	if !ok {
		return
	}

	var req updateAnnotationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnnotationBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.artifacts.UpdateAnnotation(r.Context(), id, annotationID, artifact.AnnotationChanges{
		Lines:       req.Lines,
		Comment:     req.Comment,
		SoftDeleted: req.SoftDeleted,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnnotationResponse(a))
}

func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, annotationID, ok := h.annotationIDs(w, r)
	if !ok {
		return
	}
	if err := h.artifacts.DeleteAnnotation(r.Context(), id, annotationID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) annotationIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, ok := h.imageID(w, r)
	if !ok {
		return 0, 0, false
	}
	annotationID, err := strconv.ParseInt(chi.URLParam(r, "annotationID"), 10, 64)
	if err != nil || annotationID <= 0 {
		h.badRequest(w, "invalid annotation id")
		return 0, 0, false
	}
	return id, annotationID, true
}

// includeDeleted reads the include-deleted query flag, false when absent.
func (h *Handler) includeDeleted(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("include-deleted")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		h.badRequest(w, "invalid include-deleted flag")
		return false, false
	}
	return v, true
}
