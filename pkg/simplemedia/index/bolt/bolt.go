// Package bolt provides a single-file metadata index backed by bbolt.
//
// Layout: one top-level bucket per namespace holding three nested buckets:
//
//	entries  big-endian sequence -> JSON entry (cursor order is insertion order)
//	ids      entry id -> sequence
//	keys     storage key -> entry id
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

var (
	bucketEntries = []byte("entries")
	bucketIDs     = []byte("ids")
	bucketKeys    = []byte("keys")
)

// Index implements simplemedia.Index on a bbolt database file
type Index struct {
	db *bolt.DB
}

// Open opens or creates the database at path
func Open(path string) (*Index, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt index %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, ns := range simplemedia.Namespaces() {
			root, err := tx.CreateBucketIfNotExists([]byte(ns))
			if err != nil {
				return err
			}
			for _, name := range [][]byte{bucketEntries, bucketIDs, bucketKeys} {
				if _, err := root.CreateBucketIfNotExists(name); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt index: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database file
func (i *Index) Close() error {
	return i.db.Close()
}

type buckets struct {
	entries, ids, keys *bolt.Bucket
}

func namespaceBuckets(tx *bolt.Tx, ns simplemedia.Namespace) (buckets, error) {
	root := tx.Bucket([]byte(ns))
	if !ns.IsValid() || root == nil {
		return buckets{}, simplemedia.ErrInvalidType
	}
	return buckets{
		entries: root.Bucket(bucketEntries),
		ids:     root.Bucket(bucketIDs),
		keys:    root.Bucket(bucketKeys),
	}, nil
}

func decode(ns simplemedia.Namespace, raw []byte) (*simplemedia.MediaEntry, error) {
	var e simplemedia.MediaEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	e.Namespace = ns
	return &e, nil
}

func (i *Index) List(ctx context.Context, ns simplemedia.Namespace) ([]*simplemedia.MediaEntry, error) {
	var out []*simplemedia.MediaEntry
	err := i.db.View(func(tx *bolt.Tx) error {
		b, err := namespaceBuckets(tx, ns)
		if err != nil {
			return err
		}
		c := b.entries.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			e, err := decode(ns, v)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*simplemedia.MediaEntry{}
	}
	return out, nil
}

func (i *Index) Insert(ctx context.Context, ns simplemedia.Namespace, entry *simplemedia.MediaEntry) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b, err := namespaceBuckets(tx, ns)
		if err != nil {
			return err
		}
		if b.ids.Get([]byte(entry.ID)) != nil {
			return fmt.Errorf("entry %s already exists", entry.ID)
		}
		if entry.StorageKey != "" && b.keys.Get([]byte(entry.StorageKey)) != nil {
			return fmt.Errorf("%w: %s", simplemedia.ErrDuplicateKey, entry.StorageKey)
		}

		seq, err := b.entries.NextSequence()
		if err != nil {
			return err
		}
		seqKey := make([]byte, 8)
		binary.BigEndian.PutUint64(seqKey, seq)

		stored := entry.Clone()
		stored.Namespace = ns
		raw, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		if err := b.entries.Put(seqKey, raw); err != nil {
			return err
		}
		if err := b.ids.Put([]byte(entry.ID), seqKey); err != nil {
			return err
		}
		if entry.StorageKey != "" {
			return b.keys.Put([]byte(entry.StorageKey), []byte(entry.ID))
		}
		return nil
	})
}

func (i *Index) Remove(ctx context.Context, ns simplemedia.Namespace, id string) (*simplemedia.MediaEntry, error) {
	var removed *simplemedia.MediaEntry
	err := i.db.Update(func(tx *bolt.Tx) error {
		b, err := namespaceBuckets(tx, ns)
		if err != nil {
			return err
		}
		seqKey := b.ids.Get([]byte(id))
		if seqKey == nil {
			return simplemedia.ErrEntryNotFound
		}
		seqKey = append([]byte(nil), seqKey...)

		e, err := decode(ns, b.entries.Get(seqKey))
		if err != nil {
			return err
		}
		if err := b.entries.Delete(seqKey); err != nil {
			return err
		}
		if err := b.ids.Delete([]byte(id)); err != nil {
			return err
		}
		if e.StorageKey != "" {
			if err := b.keys.Delete([]byte(e.StorageKey)); err != nil {
				return err
			}
		}
		removed = e
		return nil
	})
	return removed, err
}

func (i *Index) FindByID(ctx context.Context, ns simplemedia.Namespace, id string) (*simplemedia.MediaEntry, error) {
	var found *simplemedia.MediaEntry
	err := i.db.View(func(tx *bolt.Tx) error {
		b, err := namespaceBuckets(tx, ns)
		if err != nil {
			return err
		}
		found, err = byID(b, ns, id)
		return err
	})
	return found, err
}

func (i *Index) FindByKey(ctx context.Context, ns simplemedia.Namespace, key string) (*simplemedia.MediaEntry, error) {
	if key == "" {
		return nil, simplemedia.ErrEntryNotFound
	}
	var found *simplemedia.MediaEntry
	err := i.db.View(func(tx *bolt.Tx) error {
		b, err := namespaceBuckets(tx, ns)
		if err != nil {
			return err
		}
		id := b.keys.Get([]byte(key))
		if id == nil {
			return simplemedia.ErrEntryNotFound
		}
		found, err = byID(b, ns, string(id))
		return err
	})
	return found, err
}

func (i *Index) UpdatePoster(ctx context.Context, ns simplemedia.Namespace, id, posterKey, posterURL string) (*simplemedia.MediaEntry, error) {
	var updated *simplemedia.MediaEntry
	err := i.db.Update(func(tx *bolt.Tx) error {
		b, err := namespaceBuckets(tx, ns)
		if err != nil {
			return err
		}
		seqKey := b.ids.Get([]byte(id))
		if seqKey == nil {
			return simplemedia.ErrEntryNotFound
		}
		seqKey = append([]byte(nil), seqKey...)

		e, err := decode(ns, b.entries.Get(seqKey))
		if err != nil {
			return err
		}
		e.PosterKey = posterKey
		e.PosterURL = posterURL
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		updated = e
		return b.entries.Put(seqKey, raw)
	})
	return updated, err
}

func byID(b buckets, ns simplemedia.Namespace, id string) (*simplemedia.MediaEntry, error) {
	seqKey := b.ids.Get([]byte(id))
	if seqKey == nil {
		return nil, simplemedia.ErrEntryNotFound
	}
	raw := b.entries.Get(seqKey)
	if raw == nil {
		return nil, errors.New("bolt index: id points at a missing entry")
	}
	return decode(ns, raw)
}
