package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// PosterRequest is the request body for a poster extraction
type PosterRequest struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

// PosterResponse is the response body of a poster extraction
type PosterResponse struct {
	Success   bool   `json:"success"`
	PosterKey string `json:"posterKey"`
	PosterURL string `json:"posterUrl"`
	EntryID   string `json:"entryId,omitempty"`
}

// ResolveImage redirects to a derivative of the source key in the path.
//
//	GET /img/photos/1700000000000-cat.png?w=800&h=0&f=webp&q=82
func (s *Server) ResolveImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec := simplemedia.DerivativeSpec{
		SourceKey: chi.URLParam(r, "*"),
		Width:     queryInt(q.Get("w"), 0),
		Height:    queryInt(q.Get("h"), 0),
		Format:    simplemedia.Format(q.Get("f")),
		Quality:   queryQuality(q.Get("q")),
	}

	d, err := s.service.Resolve(r.Context(), spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", d.CacheControl)
	http.Redirect(w, r, d.URL, http.StatusFound)
}

// ExtractPoster grabs a still frame from a stored video
func (s *Server) ExtractPoster(w http.ResponseWriter, r *http.Request) {
	var req PosterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	poster, err := s.service.ExtractPoster(r.Context(), simplemedia.ExtractPosterRequest{
		SourceKey: req.Key,
		EntryID:   req.ID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.JSON(w, r, PosterResponse{
		Success:   true,
		PosterKey: poster.Key,
		PosterURL: poster.URL,
		EntryID:   poster.EntryID,
	})
}

// queryInt parses an integer query value, falling back to def when the
// value is absent or malformed.
func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// queryQuality parses the q parameter. A missing or malformed value gets the
// default quality; an explicit value below 1 clamps to 1.
func queryQuality(raw string) int {
	n := queryInt(raw, simplemedia.DefaultQuality)
	if n < 1 {
		return 1
	}
	return n
}
