package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sketchlab/internal/pipeline"
)

func (h *Handler) ownerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil || owner == uuid.Nil {
		h.badRequest(w, "invalid user id")
		return uuid.Nil, false
	}
	return owner, true
}

func (h *Handler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	img, data, err := h.artifacts.OpenAvatar(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	serveBlob(w, r, img, img.Format, "", data)
}

// UploadAvatar stores or replaces the user's avatar. A first upload
// answers 201, a replacement 200.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	declared, data, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	img, err := h.artifacts.IngestAvatar(r.Context(), owner, declared, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if img.Version == 1 {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/users/%s/avatar", owner))
	}
	writeJSON(w, status, newImageResponse(img))
}

func (h *Handler) TransformAvatar(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	op, err := pipeline.ParseTransformation(r.URL.Query().Get("transformation"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.artifacts.TransformAvatar(r.Context(), owner, op); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	if err := h.artifacts.DeleteAvatar(r.Context(), owner); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
