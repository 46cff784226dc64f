// Package api exposes the media service over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
)

// DefaultMaxUploadBytes bounds proxied multipart uploads.
const DefaultMaxUploadBytes = 200 << 20

// Server routes HTTP requests to a simplemedia.Service
type Server struct {
	service simplemedia.Service
	logger  *slog.Logger

	// store and signer back the /blobs routes for stores written through
	// this process; both are nil for remote stores.
	store  simplemedia.ObjectStore
	signer *presigned.Signer

	metrics        http.Handler
	requestLogger  *httplog.Logger
	tokenAuth      *jwtauth.JWTAuth
	corsOrigins    []string
	maxUploadBytes int64
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithBlobStore serves GET and signed PUT /blobs/* from store
func WithBlobStore(store simplemedia.ObjectStore, signer *presigned.Signer) Option {
	return func(s *Server) {
		s.store = store
		s.signer = signer
	}
}

// WithMetricsHandler mounts h at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRequestLogger logs every request through httplog
func WithRequestLogger(l *httplog.Logger) Option {
	return func(s *Server) {
		s.requestLogger = l
	}
}

// WithJWTSecret requires an HS256 bearer token on admin routes
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
		}
	}
}

// WithCORSOrigins sets the allowed cross-origin callers
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithMaxUploadBytes bounds proxied uploads
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

// New creates an HTTP server for service
func New(service simplemedia.Service, options ...Option) *Server {
	s := &Server{
		service:        service,
		logger:         slog.Default(),
		corsOrigins:    []string{"*"},
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Routes returns the full router
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.requestLogger != nil {
		r.Use(httplog.RequestLogger(s.requestLogger))
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.Health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// Public read surface
	r.Get("/data/{type}", s.ListEntries)
	r.Get("/data/{type}/{id}", s.GetEntry)
	r.Get("/img/*", s.ResolveImage)

	if s.store != nil {
		r.Get("/blobs/*", s.GetBlob)
		r.Head("/blobs/*", s.GetBlob)
		if s.signer != nil {
			r.With(presigned.ValidateMiddleware(s.signer)).Put("/blobs/*", s.PutBlob)
		}
	}

	// Admin surface
	r.Group(func(r chi.Router) {
		if s.tokenAuth != nil {
			r.Use(jwtauth.Verifier(s.tokenAuth))
			r.Use(jwtauth.Authenticator)
		}

		r.Post("/upload/presign/{type}", s.RequestUploadSlot)
		r.Post("/upload/complete", s.CompleteUpload)
		r.Post("/upload/youtube", s.LinkExternalVideo)
		r.Post("/upload/{type}", s.Upload)
		r.Delete("/delete/{type}/{id}", s.DeleteEntry)
		r.Post("/video/poster", s.ExtractPoster)
	})

	return r
}

// Health reports liveness
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
