package presigned

import (
	"strings"
	"time"
)

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
// The key should be at least 32 bytes for security
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithBaseURL sets the scheme and host prepended to signed URLs
// Example: "http://localhost:3000"
func WithBaseURL(baseURL string) Option {
	return func(s *Signer) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRoutePrefix sets the path under which keys are addressed (default "/blobs/")
func WithRoutePrefix(prefix string) Option {
	return func(s *Signer) {
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		s.routePrefix = prefix
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) {
		s.clock = clock
	}
}
