package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// shard is one namespace's list, newest first, with its own lock
type shard struct {
	mu      sync.RWMutex
	entries []*simplemedia.MediaEntry
}

// Index implements simplemedia.Index in memory. Each namespace has its own
// lock, so mutations of one namespace never wait on another.
type Index struct {
	shards map[simplemedia.Namespace]*shard
}

// New creates a new in-memory index
func New() *Index {
	idx := &Index{shards: make(map[simplemedia.Namespace]*shard)}
	for _, ns := range simplemedia.Namespaces() {
		idx.shards[ns] = &shard{}
	}
	return idx
}

func (i *Index) shard(ns simplemedia.Namespace) (*shard, error) {
	s, ok := i.shards[ns]
	if !ok {
		return nil, simplemedia.ErrInvalidType
	}
	return s, nil
}

func (i *Index) List(ctx context.Context, ns simplemedia.Namespace) ([]*simplemedia.MediaEntry, error) {
	s, err := i.shard(ns)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*simplemedia.MediaEntry, len(s.entries))
	for n, e := range s.entries {
		out[n] = e.Clone()
	}
	return out, nil
}

func (i *Index) Insert(ctx context.Context, ns simplemedia.Namespace, entry *simplemedia.MediaEntry) error {
	s, err := i.shard(ns)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == entry.ID {
			return fmt.Errorf("entry %s already exists", entry.ID)
		}
		if entry.StorageKey != "" && e.StorageKey == entry.StorageKey {
			return fmt.Errorf("%w: %s", simplemedia.ErrDuplicateKey, entry.StorageKey)
		}
	}

	stored := entry.Clone()
	stored.Namespace = ns
	s.entries = append([]*simplemedia.MediaEntry{stored}, s.entries...)
	return nil
}

func (i *Index) Remove(ctx context.Context, ns simplemedia.Namespace, id string) (*simplemedia.MediaEntry, error) {
	s, err := i.shard(ns)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for n, e := range s.entries {
		if e.ID == id {
			// New backing array so earlier List snapshots stay intact
			rest := make([]*simplemedia.MediaEntry, 0, len(s.entries)-1)
			rest = append(rest, s.entries[:n]...)
			s.entries = append(rest, s.entries[n+1:]...)
			return e, nil
		}
	}
	return nil, simplemedia.ErrEntryNotFound
}

func (i *Index) FindByID(ctx context.Context, ns simplemedia.Namespace, id string) (*simplemedia.MediaEntry, error) {
	return i.find(ns, func(e *simplemedia.MediaEntry) bool { return e.ID == id })
}

func (i *Index) FindByKey(ctx context.Context, ns simplemedia.Namespace, key string) (*simplemedia.MediaEntry, error) {
	if key == "" {
		return nil, simplemedia.ErrEntryNotFound
	}
	return i.find(ns, func(e *simplemedia.MediaEntry) bool { return e.StorageKey == key })
}

func (i *Index) UpdatePoster(ctx context.Context, ns simplemedia.Namespace, id, posterKey, posterURL string) (*simplemedia.MediaEntry, error) {
	s, err := i.shard(ns)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for n, e := range s.entries {
		if e.ID == id {
			updated := e.Clone()
			updated.PosterKey = posterKey
			updated.PosterURL = posterURL
			s.entries[n] = updated
			return updated.Clone(), nil
		}
	}
	return nil, simplemedia.ErrEntryNotFound
}

func (i *Index) find(ns simplemedia.Namespace, match func(*simplemedia.MediaEntry) bool) (*simplemedia.MediaEntry, error) {
	s, err := i.shard(ns)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if match(e) {
			return e.Clone(), nil
		}
	}
	return nil, simplemedia.ErrEntryNotFound
}
