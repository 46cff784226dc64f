package presigned

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type contextKey string

const (
	// ObjectKeyContextKey is the context key for storing the validated object key
	ObjectKeyContextKey contextKey = "presigned:object_key"
)

// ValidateMiddleware returns HTTP middleware that validates delegated write
// signatures. On success the authorized key is placed in the request context.
//
// Example:
//
//	r.With(presigned.ValidateMiddleware(signer)).Put("/blobs/*", putHandler)
func ValidateMiddleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := signer.ValidateRequest(r)
			if err != nil {
				handleValidationError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), ObjectKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ObjectKeyFromContext extracts the validated object key from the request context
// Returns empty string if not found
func ObjectKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(ObjectKeyContextKey).(string); ok {
		return key
	}
	return ""
}

// handleValidationError writes an appropriate HTTP error response based on the validation error
func handleValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingSignature):
		http.Error(w, "Missing signature parameter", http.StatusUnauthorized)
	case errors.Is(err, ErrMissingExpiration):
		http.Error(w, "Missing expires parameter", http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidExpiration), errors.Is(err, ErrInvalidPath):
		http.Error(w, "Invalid upload URL", http.StatusBadRequest)
	case errors.Is(err, ErrExpired):
		http.Error(w, "Upload URL has expired", http.StatusForbidden)
	case errors.Is(err, ErrAlreadyUsed):
		http.Error(w, "Upload URL already used", http.StatusForbidden)
	case errors.Is(err, ErrInvalidSignature):
		http.Error(w, "Invalid signature", http.StatusForbidden)
	case errors.Is(err, ErrNoSecretKey):
		http.Error(w, "Delegated uploads are disabled", http.StatusNotFound)
	default:
		slog.Warn("presigned: validation error", "error", err)
		http.Error(w, "Authentication failed", http.StatusForbidden)
	}
}
