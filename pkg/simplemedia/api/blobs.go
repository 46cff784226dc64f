package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
)

// GetBlob serves an object from a store written through this process
func (s *Server) GetBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	if statter, ok := s.store.(simplemedia.ObjectStatter); ok {
		info, err := statter.Stat(r.Context(), key)
		if err != nil {
			s.blobError(w, r, err)
			return
		}
		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}
		if info.CacheControl != "" {
			w.Header().Set("Cache-Control", info.CacheControl)
		}
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	rc, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.blobError(w, r, err)
		return
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		s.logger.WarnContext(r.Context(), "blob copy interrupted", "key", key, "error", err)
	}
}

// PutBlob accepts a delegated upload. The signer middleware has already
// checked the signature, expiry and declared content type.
func (s *Server) PutBlob(w http.ResponseWriter, r *http.Request) {
	key := presigned.ObjectKeyFromContext(r.Context())
	if key == "" {
		http.Error(w, "Invalid upload URL", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	err := s.store.Put(r.Context(), key, r.Body, simplemedia.PutOptions{
		ContentType: strings.TrimSpace(r.Header.Get("Content-Type")),
	})
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.ErrorContext(r.Context(), "delegated upload failed", "key", key, "error", err)
		http.Error(w, "Upload failed", http.StatusServiceUnavailable)
		return
	}

	s.logger.DebugContext(r.Context(), "delegated upload stored", "key", key)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) blobError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, simplemedia.ErrObjectNotFound) {
		http.NotFound(w, r)
		return
	}
	if errors.Is(err, simplemedia.ErrInvalidReference) {
		http.Error(w, "Invalid key", http.StatusBadRequest)
		return
	}
	s.logger.ErrorContext(r.Context(), "blob read failed", "error", err)
	http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
}
