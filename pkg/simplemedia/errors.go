package simplemedia

import (
	"context"
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidType indicates a namespace outside photos, videos and sponsors
	ErrInvalidType = errors.New("invalid content type")

	// ErrMissingField indicates a required request field was empty
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidReference indicates an external video URL without a recognizable id
	ErrInvalidReference = errors.New("invalid reference")

	// ErrSourceNotFound indicates the source object of a derivative is absent
	ErrSourceNotFound = errors.New("source not found")

	// ErrUnsupportedFormat indicates a requested output format has no encoder
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDecodeFailure indicates a source could not be decoded
	ErrDecodeFailure = errors.New("decode failure")

	// ErrFrameExtractionFailure indicates no frame could be read from a video
	ErrFrameExtractionFailure = errors.New("frame extraction failure")

	// ErrTimeout indicates a fetch or transform exceeded its deadline
	ErrTimeout = errors.New("operation timed out")

	// ErrStorageUnavailable indicates a transient object store failure
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEntryNotFound indicates no index entry matched
	ErrEntryNotFound = errors.New("entry not found")

	// ErrObjectNotFound indicates the object store has nothing at a key
	ErrObjectNotFound = errors.New("object not found")

	// ErrSourceTooLarge indicates a source exceeds the configured read limit
	ErrSourceTooLarge = errors.New("source too large")

	// ErrDuplicateKey indicates a namespace already holds an entry for a storage key
	ErrDuplicateKey = errors.New("duplicate storage key")
)

// StorageError represents an error related to object store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// EntryError represents an error related to index entry operations
type EntryError struct {
	Namespace Namespace
	ID        string
	Op        string
	Err       error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry operation %s failed for %s/%s: %v", e.Op, e.Namespace, e.ID, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidType, "InvalidType"},
	{ErrMissingField, "MissingField"},
	{ErrInvalidReference, "InvalidReference"},
	{ErrSourceNotFound, "SourceNotFound"},
	{ErrUnsupportedFormat, "UnsupportedFormat"},
	{ErrDecodeFailure, "DecodeFailure"},
	{ErrFrameExtractionFailure, "FrameExtractionFailure"},
	{ErrTimeout, "Timeout"},
	{ErrStorageUnavailable, "StorageUnavailable"},
	{ErrEntryNotFound, "EntryNotFound"},
	{ErrObjectNotFound, "ObjectNotFound"},
	{ErrSourceTooLarge, "SourceTooLarge"},
	{ErrDuplicateKey, "DuplicateKey"},
}

// Kind returns the taxonomy name of err, or "Internal" when err matches no
// known sentinel. A nil error has no kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	return "Internal"
}

// IsValidation reports whether err is a caller mistake that must not be retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidReference)
}

// storageFailure classifies an object store error. Deadline expiry becomes
// ErrTimeout, a missing object is left as is, anything else is unavailable.
func storageFailure(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, ErrObjectNotFound), errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrTimeout):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}
