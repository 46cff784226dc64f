package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// ErrorResponse is the body of every failed JSON request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

var statusByKind = map[string]int{
	"InvalidType":            http.StatusBadRequest,
	"MissingField":           http.StatusBadRequest,
	"InvalidReference":       http.StatusBadRequest,
	"SourceNotFound":         http.StatusNotFound,
	"EntryNotFound":          http.StatusNotFound,
	"ObjectNotFound":         http.StatusNotFound,
	"DuplicateKey":           http.StatusConflict,
	"SourceTooLarge":         http.StatusRequestEntityTooLarge,
	"UnsupportedFormat":      http.StatusUnsupportedMediaType,
	"DecodeFailure":          http.StatusUnprocessableEntity,
	"FrameExtractionFailure": http.StatusUnprocessableEntity,
	"StorageUnavailable":     http.StatusServiceUnavailable,
	"Timeout":                http.StatusGatewayTimeout,
}

// StatusFor maps a service error to an HTTP status code
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	if code, ok := statusByKind[simplemedia.Kind(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	kind := simplemedia.Kind(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(code)
	}

	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{Success: false, Error: msg, Kind: kind})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Success: false, Error: msg})
}
