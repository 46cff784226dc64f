package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// ListEntries returns a namespace's entries newest first. Unknown
// namespaces list as empty.
func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.List(r.Context(), simplemedia.Namespace(chi.URLParam(r, "type")))
	if errors.Is(err, simplemedia.ErrInvalidType) {
		render.JSON(w, r, []*simplemedia.MediaEntry{})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, entries)
}

// GetEntry returns one entry
func (s *Server) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.Get(r.Context(), simplemedia.Namespace(chi.URLParam(r, "type")), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

// DeleteEntry removes an entry and, best effort, its objects
func (s *Server) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	err := s.service.Delete(r.Context(), simplemedia.Namespace(chi.URLParam(r, "type")), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": true})
}
