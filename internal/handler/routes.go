package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/stats", h.Stats)

	// Images
	r.Get("/images", h.ListImages)
	r.With(h.limitWrites).Post("/images/{kind}", h.UploadImage)
	r.Get("/images/{id}", h.GetImage)
	r.With(h.limitWrites).Put("/images/{id}", h.TransformImage)
	r.Delete("/images/{id}", h.DeleteImage)
	r.Get("/images/{id}/file", h.ServeImage)
	r.Get("/images/{id}/thumbnail", h.ServeThumbnail)

	// Annotations
	r.Get("/images/{id}/annotations", h.ListAnnotations)
	r.Post("/images/{id}/annotations", h.CreateAnnotation)
	r.Get("/images/{id}/annotations/{annotationID}", h.GetAnnotation)
	r.Put("/images/{id}/annotations/{annotationID}", h.UpdateAnnotation)
	r.Delete("/images/{id}/annotations/{annotationID}", h.DeleteAnnotation)

	// Avatars
	r.Get("/users/{userID}/avatar", h.ServeAvatar)
	r.With(h.limitWrites).Post("/users/{userID}/avatar", h.UploadAvatar)
	r.With(h.limitWrites).Put("/users/{userID}/avatar", h.TransformAvatar)
	r.Delete("/users/{userID}/avatar", h.DeleteAvatar)
}

func (h *Handler) limitWrites(next http.Handler) http.Handler {
	if h.writeLimit == nil {
		return next
	}
	return h.writeLimit(next)
}
