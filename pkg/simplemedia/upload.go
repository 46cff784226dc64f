package simplemedia

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
)

// externalVideoID matches the 11 character id in watch (v=...) and path forms.
var externalVideoID = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// ExternalVideoID extracts the hosted video id from a share or watch URL.
func ExternalVideoID(rawURL string) (string, bool) {
	m := externalVideoID.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (s *service) RequestUploadSlot(ctx context.Context, req UploadSlotRequest) (*UploadSlot, error) {
	ns, err := ParseNamespace(string(req.Namespace))
	if err != nil {
		return nil, err
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename", ErrMissingField)
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		return nil, fmt.Errorf("%w: contentType", ErrMissingField)
	}
	if !ns.Accepts(contentType) {
		return nil, fmt.Errorf("%w: %s does not accept %s", ErrInvalidType, ns, contentType)
	}

	key := objectkey.UploadKey(ns.KeyPrefix(), s.stamper.Next(), filename)
	issuedAt := s.now()
	uploadURL, err := s.store.PresignPut(ctx, key, contentType, s.uploadTTL)
	if err != nil {
		return nil, storageFailure(err)
	}

	s.logger.Debug("issued upload slot", "type", ns, "key", key, "ttl", s.uploadTTL)
	return &UploadSlot{
		UploadURL:  uploadURL,
		StorageKey: key,
		PublicURL:  s.urls.PublicURL(key),
		ExpiresAt:  issuedAt.Add(s.uploadTTL).UTC(),
	}, nil
}

func (s *service) CompleteUpload(ctx context.Context, req CompleteUploadRequest) (*MediaEntry, error) {
	ns, err := ParseNamespace(string(req.Namespace))
	if err != nil {
		return nil, err
	}
	key := strings.TrimLeft(strings.TrimSpace(req.StorageKey), "/")
	if key == "" {
		return nil, fmt.Errorf("%w: key", ErrMissingField)
	}
	if !objectkey.IsSafe(key) {
		return nil, fmt.Errorf("%w: key %q", ErrInvalidReference, req.StorageKey)
	}
	if !strings.HasPrefix(key, ns.KeyPrefix()+"/") {
		return nil, fmt.Errorf("%w: key %q is outside %s/", ErrInvalidReference, req.StorageKey, ns.KeyPrefix())
	}

	if s.strictCompletion {
		exists, err := s.store.Head(ctx, key)
		if err != nil {
			return nil, storageFailure(err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, key)
		}
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = path.Base(key)
	}
	entry := &MediaEntry{
		ID:          s.newID(),
		Namespace:   ns,
		StorageKey:  key,
		DisplayName: name,
		SourceURL:   s.urls.PublicURL(key),
		ContentType: strings.TrimSpace(req.ContentType),
		CreatedAt:   s.now().UTC(),
	}
	return s.commit(ctx, ns, entry)
}

func (s *service) LinkExternalVideo(ctx context.Context, req LinkVideoRequest) (*MediaEntry, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url", ErrMissingField)
	}
	videoID, ok := ExternalVideoID(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: no video id in %q", ErrInvalidReference, rawURL)
	}

	entry := &MediaEntry{
		ID:              s.newID(),
		Namespace:       NamespaceVideos,
		DisplayName:     strings.TrimSpace(req.Name),
		SourceURL:       rawURL,
		CreatedAt:       s.now().UTC(),
		ExternalVideoID: videoID,
	}
	if err := s.index.Insert(ctx, NamespaceVideos, entry); err != nil {
		return nil, &EntryError{Namespace: NamespaceVideos, ID: entry.ID, Op: "link", Err: err}
	}

	s.metrics.UploadCommitted(NamespaceVideos)
	s.publish(ctx, EventVideoLinked, NamespaceVideos, entry.ID, "")
	return entry.Clone(), nil
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*MediaEntry, error) {
	ns, err := ParseNamespace(string(req.Namespace))
	if err != nil {
		return nil, err
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename", ErrMissingField)
	}
	if req.Reader == nil {
		return nil, fmt.Errorf("%w: file", ErrMissingField)
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !ns.Accepts(contentType) {
		return nil, fmt.Errorf("%w: %s does not accept %s", ErrInvalidType, ns, contentType)
	}

	key := objectkey.UploadKey(ns.KeyPrefix(), s.stamper.Next(), filename)
	if err := s.store.Put(ctx, key, req.Reader, PutOptions{ContentType: contentType}); err != nil {
		return nil, storageFailure(err)
	}

	entry := &MediaEntry{
		ID:          s.newID(),
		Namespace:   ns,
		StorageKey:  key,
		DisplayName: filename,
		SourceURL:   s.urls.PublicURL(key),
		ContentType: contentType,
		CreatedAt:   s.now().UTC(),
	}
	return s.commit(ctx, ns, entry)
}

// commit inserts a stored entry. A repeated completion for the same key
// returns the entry already committed.
func (s *service) commit(ctx context.Context, ns Namespace, entry *MediaEntry) (*MediaEntry, error) {
	err := s.index.Insert(ctx, ns, entry)
	if errors.Is(err, ErrDuplicateKey) {
		existing, findErr := s.index.FindByKey(ctx, ns, entry.StorageKey)
		if findErr != nil {
			return nil, &EntryError{Namespace: ns, ID: entry.ID, Op: "complete", Err: findErr}
		}
		s.logger.Info("upload already committed", "type", ns, "key", entry.StorageKey, "id", existing.ID)
		return existing, nil
	}
	if err != nil {
		return nil, &EntryError{Namespace: ns, ID: entry.ID, Op: "complete", Err: err}
	}

	s.logger.Info("upload committed", "type", ns, "key", entry.StorageKey, "id", entry.ID)
	s.metrics.UploadCommitted(ns)
	s.publish(ctx, EventUploadCompleted, ns, entry.ID, entry.StorageKey)
	return entry.Clone(), nil
}
