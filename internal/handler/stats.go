package handler

import (
	"errors"
	"net/http"
)

// Stats reports upload and transform counts over the last 7 and 30 days.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		h.fail(w, r, errors.New("metrics recorder not configured"))
		return
	}
	stats, err := h.metrics.GetStats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
