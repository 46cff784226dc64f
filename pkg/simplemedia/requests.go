package simplemedia

import "io"

// UploadSlotRequest contains parameters for issuing a delegated write.
type UploadSlotRequest struct {
	Namespace   Namespace `json:"type"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
}

// CompleteUploadRequest contains parameters for committing a direct write.
type CompleteUploadRequest struct {
	Namespace   Namespace `json:"type"`
	StorageKey  string    `json:"key"`
	DisplayName string    `json:"name"`
	ContentType string    `json:"contentType"`
}

// UploadRequest contains parameters for a server-proxied upload.
type UploadRequest struct {
	Namespace   Namespace
	Filename    string
	ContentType string
	Reader      io.Reader
}

// LinkVideoRequest contains parameters for linking an externally hosted video.
type LinkVideoRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// ExtractPosterRequest contains parameters for poster extraction. EntryID is
// optional; when set the matching video entry receives the poster fields.
type ExtractPosterRequest struct {
	SourceKey string `json:"key"`
	EntryID   string `json:"id,omitempty"`
}
