package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
)

// Signer issues and validates HMAC-signed delegated PUT URLs for stores
// that cannot presign natively. A signature binds method, key, content type
// and expiry, and is accepted at most once.
type Signer struct {
	secretKey   []byte
	baseURL     string
	routePrefix string
	clock       func() time.Time

	mu   sync.Mutex
	used map[string]int64 // signature -> expiresAt
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		routePrefix: "/blobs/",
		clock:       time.Now,
		used:        make(map[string]int64),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignPut generates a delegated PUT URL for key.
//
// Example:
//
//	url, err := signer.SignPut("photos/1700000000000-cat.png", "image/png", 15*time.Minute)
//	// Returns: http://localhost:3000/blobs/photos/1700000000000-cat.png?expires=1700000900&signature=ab12...
func (s *Signer) SignPut(key, contentType string, expiresIn time.Duration) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}
	if expiresIn <= 0 {
		return "", fmt.Errorf("presigned: expiry must be positive, got %s", expiresIn)
	}

	expiresAt := s.clock().Add(expiresIn).Unix()
	signature := s.generateSignature(createPayload(http.MethodPut, key, contentType, expiresAt))

	return fmt.Sprintf("%s%s%s?expires=%d&signature=%s",
		s.baseURL, s.routePrefix, urlstrategy.EscapeKey(key), expiresAt, signature), nil
}

// ValidateRequest checks a delegated request's signature, expiry and content
// type, claims the signature, and returns the object key it authorizes.
func (s *Signer) ValidateRequest(r *http.Request) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}

	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return "", ErrMissingSignature
	}
	if expiresStr == "" {
		return "", ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	key, err := s.ExtractObjectKey(r.URL.Path)
	if err != nil {
		return "", err
	}

	contentType := strings.TrimSpace(r.Header.Get("Content-Type"))
	if err := s.Validate(r.Method, key, contentType, signature, expiresAt); err != nil {
		return "", err
	}
	if err := s.claim(signature, expiresAt); err != nil {
		return "", err
	}
	return key, nil
}

// Validate checks expiry and signature without claiming it.
func (s *Signer) Validate(method, key, contentType, signature string, expiresAt int64) error {
	if s.clock().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.generateSignature(createPayload(method, key, contentType, expiresAt))

	// Compare signatures using constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// ExtractObjectKey strips the route prefix from a decoded request path.
func (s *Signer) ExtractObjectKey(path string) (string, error) {
	if !strings.HasPrefix(path, s.routePrefix) {
		return "", fmt.Errorf("%w: path does not match %s", ErrInvalidPath, s.routePrefix)
	}
	key := strings.TrimPrefix(path, s.routePrefix)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidPath)
	}
	return key, nil
}

// IsEnabled returns true if a secret key is configured
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

// claim marks a signature as spent. Spent signatures are forgotten once
// they expire, since expiry alone rejects them from then on.
func (s *Signer) claim(signature string, expiresAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().Unix()
	for sig, exp := range s.used {
		if exp < now {
			delete(s.used, sig)
		}
	}
	if _, ok := s.used[signature]; ok {
		return ErrAlreadyUsed
	}
	s.used[signature] = expiresAt
	return nil
}

// createPayload creates the signature payload: METHOD|KEY|CONTENT-TYPE|EXPIRES
func createPayload(method, key, contentType string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%s|%d", method, key, contentType, expiresAt)
}

// generateSignature generates HMAC-SHA256 signature for the given payload
func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
