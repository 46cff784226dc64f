package simplemedia

import (
	"context"
	"strings"
)

func (s *service) List(ctx context.Context, ns Namespace) ([]*MediaEntry, error) {
	ns, err := ParseNamespace(string(ns))
	if err != nil {
		return nil, err
	}
	return s.index.List(ctx, ns)
}

func (s *service) Get(ctx context.Context, ns Namespace, id string) (*MediaEntry, error) {
	ns, err := ParseNamespace(string(ns))
	if err != nil {
		return nil, err
	}
	entry, err := s.index.FindByID(ctx, ns, strings.TrimSpace(id))
	if err != nil {
		return nil, &EntryError{Namespace: ns, ID: id, Op: "get", Err: err}
	}
	return entry, nil
}

// Delete removes the entry first, then its blobs. Blob failures are logged
// and swallowed: once the entry is gone the item no longer exists.
func (s *service) Delete(ctx context.Context, ns Namespace, id string) error {
	ns, err := ParseNamespace(string(ns))
	if err != nil {
		return err
	}
	removed, err := s.index.Remove(ctx, ns, strings.TrimSpace(id))
	if err != nil {
		return &EntryError{Namespace: ns, ID: id, Op: "delete", Err: err}
	}

	for _, key := range []string{removed.StorageKey, removed.PosterKey} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("blob delete failed after index removal", "type", ns, "id", removed.ID, "key", key, "error", err)
		}
	}

	s.logger.Info("entry deleted", "type", ns, "id", removed.ID)
	s.publish(ctx, EventEntryDeleted, ns, removed.ID, removed.StorageKey)
	return nil
}
