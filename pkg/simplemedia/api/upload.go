package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// PresignRequest is the request body for an upload slot
type PresignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// PresignResponse is the response body for an upload slot
type PresignResponse struct {
	Success   bool      `json:"success"`
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CompleteRequest is the request body sent after a direct upload finished
type CompleteRequest struct {
	Type        string `json:"type"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// LinkVideoRequest is the request body for an external video link
type LinkVideoRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// EntryResponse wraps a single entry
type EntryResponse struct {
	Success bool                    `json:"success"`
	Entry   *simplemedia.MediaEntry `json:"entry"`
}

// RequestUploadSlot issues a delegated upload URL
func (s *Server) RequestUploadSlot(w http.ResponseWriter, r *http.Request) {
	var req PresignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	slot, err := s.service.RequestUploadSlot(r.Context(), simplemedia.UploadSlotRequest{
		Namespace:   simplemedia.Namespace(chi.URLParam(r, "type")),
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.JSON(w, r, PresignResponse{
		Success:   true,
		UploadURL: slot.UploadURL,
		Key:       slot.StorageKey,
		URL:       slot.PublicURL,
		ExpiresAt: slot.ExpiresAt,
	})
}

// CompleteUpload commits an entry for a finished direct upload
func (s *Server) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	entry, err := s.service.CompleteUpload(r.Context(), simplemedia.CompleteUploadRequest{
		Namespace:   simplemedia.Namespace(req.Type),
		StorageKey:  req.Key,
		DisplayName: req.Name,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, EntryResponse{Success: true, Entry: entry})
}

// LinkExternalVideo records a hosted video
func (s *Server) LinkExternalVideo(w http.ResponseWriter, r *http.Request) {
	var req LinkVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	entry, err := s.service.LinkExternalVideo(r.Context(), simplemedia.LinkVideoRequest{URL: req.URL, Name: req.Name})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, EntryResponse{Success: true, Entry: entry})
}

// Upload stores a multipart "file" part through the server
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.writeError(w, r, err)
			return
		}
		s.badRequest(w, r, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, r, "No file")
		return
	}
	defer file.Close()

	entry, err := s.service.Upload(r.Context(), simplemedia.UploadRequest{
		Namespace:   simplemedia.Namespace(chi.URLParam(r, "type")),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, EntryResponse{Success: true, Entry: entry})
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
