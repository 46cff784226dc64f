package presigned

import "errors"

// Signature validation errors
var (
	// ErrNoSecretKey is returned when signing or validating without a configured secret key
	ErrNoSecretKey = errors.New("presigned: no secret key configured")

	// ErrMissingSignature is returned when the signature query parameter is missing
	ErrMissingSignature = errors.New("presigned: missing signature parameter")

	// ErrMissingExpiration is returned when the expires query parameter is missing
	ErrMissingExpiration = errors.New("presigned: missing expires parameter")

	// ErrInvalidExpiration is returned when the expires parameter cannot be parsed
	ErrInvalidExpiration = errors.New("presigned: invalid expires parameter")

	// ErrExpired is returned when the presigned URL has expired
	ErrExpired = errors.New("presigned: URL has expired")

	// ErrInvalidSignature is returned when the signature does not match method, key, content type and expiry
	ErrInvalidSignature = errors.New("presigned: invalid signature")

	// ErrAlreadyUsed is returned when a signature has already authorized a write
	ErrAlreadyUsed = errors.New("presigned: URL already used")

	// ErrInvalidPath is returned when the request path does not address a key
	ErrInvalidPath = errors.New("presigned: invalid path")
)

// IsAuthError returns true if the error is a signature validation error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrMissingExpiration) ||
		errors.Is(err, ErrInvalidExpiration) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrAlreadyUsed)
}
