package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sketchlab/internal/artifact"
	"sketchlab/internal/pipeline"
)

// uploadField is the multipart form field carrying the image.
const uploadField = "file"

// multipartOverhead is allowed on top of the file limit for part headers
// and boundaries.
const multipartOverhead = 1 << 20

type imageResponse struct {
	ID           int64     `json:"id"`
	Kind         string    `json:"kind"`
	OwnerID      string    `json:"ownerId,omitempty"`
	MimeType     string    `json:"mimeType"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SizeBytes    int64     `json:"sizeBytes"`
	Version      int64     `json:"version"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newImageResponse(img *artifact.Image) imageResponse {
	resp := imageResponse{
		ID:        img.ID,
		Kind:      string(img.Kind),
		OwnerID:   img.OwnerID,
		MimeType:  img.Format.MimeType(),
		Width:     img.Width,
		Height:    img.Height,
		SizeBytes: img.SizeBytes,
		Version:   img.Version,
		URL:       fmt.Sprintf("/images/%d/file", img.ID),
		CreatedAt: img.CreatedAt,
		UpdatedAt: img.UpdatedAt,
	}
	if img.Kind == artifact.KindAvatar {
		resp.URL = fmt.Sprintf("/users/%s/avatar", img.OwnerID)
	}
	if img.HasThumbnail {
		resp.ThumbnailURL = fmt.Sprintf("/images/%d/thumbnail", img.ID)
	}
	return resp
}

// ListImages returns stored images, optionally filtered with ?kind=.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	var kind artifact.Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		kind = artifact.Kind(k)
		if kind != artifact.KindAvatar {
			parsed, err := artifact.ParseKind(k)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			kind = parsed
		}
	}

	images, err := h.artifacts.List(r.Context(), kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := make([]imageResponse, 0, len(images))
	for i := range images {
		resp = append(resp, newImageResponse(&images[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UploadImage stores the multipart "file" part as an image of the kind
// named in the path. The part's Content-Type header is the declared type.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	kind, err := artifact.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	declared, data, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	img, err := h.artifacts.Ingest(r.Context(), kind, declared, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/images/%d", img.ID))
	writeJSON(w, http.StatusCreated, newImageResponse(img))
}

func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	img, err := h.artifacts.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImageResponse(img))
}

// TransformImage applies ?transformation= to the stored image and its
// annotations.
func (h *Handler) TransformImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	op, err := pipeline.ParseTransformation(r.URL.Query().Get("transformation"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.artifacts.Transform(r.Context(), id, op); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	if err := h.artifacts.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	img, data, err := h.artifacts.Open(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	serveBlob(w, r, img, img.Format, "", data)
}

func (h *Handler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	img, data, err := h.artifacts.Thumbnail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	serveBlob(w, r, img, pipeline.ThumbnailFormat, "thumb", data)
}

// serveBlob writes an image blob. The ETag changes with every version, so
// clients revalidate after a transformation.
func serveBlob(w http.ResponseWriter, r *http.Request, img *artifact.Image, format pipeline.ImageFormat, variant string, data []byte) {
	etag := fmt.Sprintf(`"%d-v%d"`, img.ID, img.Version)
	name := fmt.Sprintf("%d.%s", img.ID, format.Extension())
	if variant != "" {
		etag = fmt.Sprintf(`"%d-v%d-%s"`, img.ID, img.Version, variant)
		name = fmt.Sprintf("%d_%s.%s", img.ID, variant, format.Extension())
	}
	w.Header().Set("Content-Type", format.MimeType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", etag)
	http.ServeContent(w, r, name, img.UpdatedAt, bytes.NewReader(data))
}

func (h *Handler) imageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(w, "invalid image id")
		return 0, false
	}
	return id, true
}

// readUpload streams the multipart body and returns the declared type and
// content of the first "file" part. Other parts are skipped.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, fmt.Errorf("%w: expected multipart/form-data", pipeline.ErrFormat)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, fmt.Errorf("%w: missing %q part", pipeline.ErrFormat, uploadField)
		}
		if err != nil {
			return "", nil, uploadReadError(err)
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, h.maxUploadBytes+1))
		part.Close()
		if err != nil {
			return "", nil, uploadReadError(err)
		}
		if int64(len(data)) > h.maxUploadBytes {
			return "", nil, errUploadTooLarge
		}
		return part.Header.Get("Content-Type"), data, nil
	}
}

func uploadReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errUploadTooLarge
	}
	return fmt.Errorf("%w: malformed multipart body: %v", pipeline.ErrFormat, err)
}
