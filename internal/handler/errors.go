package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sketchlab/internal/artifact"
)

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

// fail maps err onto a status code. Only server-side failures are logged
// with the underlying error; the client sees a generic message for those.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fieldErrors(validationErrs)})
	case errors.Is(err, errUploadTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	case artifact.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, artifact.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, artifact.ErrNoThumbnail):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, artifact.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func fieldErrors(errs validator.ValidationErrors) []fieldError {
	out := make([]fieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}
