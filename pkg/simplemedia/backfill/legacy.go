// Package backfill moves data written by the earlier file-based deployment
// into the configured store and index, and fills in derived fields that
// older entries lack.
package backfill

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// LegacyEntry is one record of a data/{type}.json file.
type LegacyEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	URL         string    `json:"url,omitempty"`
	Key         string    `json:"key,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Date        time.Time `json:"date"`
	YoutubeID   string    `json:"youtubeId,omitempty"`
	PosterKey   string    `json:"posterKey,omitempty"`
	PosterURL   string    `json:"posterUrl,omitempty"`
}

// LegacyIndexPath returns root/data/{ns}.json.
func LegacyIndexPath(root string, ns simplemedia.Namespace) string {
	return filepath.Join(root, "data", string(ns)+".json")
}

// ReadLegacyIndex reads a JSON index file. A missing file reads as empty.
func ReadLegacyIndex(path string) ([]LegacyEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []LegacyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

// KeyFromURL recovers a storage key from a stored object URL. Local upload
// paths of the form /uploads/{type}/{file} map to {type}/{file}.
func KeyFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	p = strings.TrimLeft(p, "/")
	p = strings.TrimPrefix(p, "uploads/")
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return p
}

// keyFor returns the entry's storage key, recovering it from the URL when
// the entry predates stored keys. External videos have no key.
func (e LegacyEntry) keyFor() string {
	if e.YoutubeID != "" {
		return ""
	}
	if e.Key != "" {
		return strings.TrimLeft(e.Key, "/")
	}
	return KeyFromURL(e.URL)
}

func (e LegacyEntry) mediaEntry(ns simplemedia.Namespace, urls simplemedia.URLStrategy, now time.Time) *simplemedia.MediaEntry {
	entry := &simplemedia.MediaEntry{
		ID:              e.ID,
		Namespace:       ns,
		StorageKey:      e.keyFor(),
		DisplayName:     e.Name,
		SourceURL:       e.URL,
		ContentType:     e.ContentType,
		CreatedAt:       e.Date.UTC(),
		PosterKey:       e.PosterKey,
		PosterURL:       e.PosterURL,
		ExternalVideoID: e.YoutubeID,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now.UTC()
	}
	if entry.StorageKey != "" {
		entry.SourceURL = urls.PublicURL(entry.StorageKey)
	}
	if entry.PosterKey != "" {
		entry.PosterURL = urls.PublicURL(entry.PosterKey)
	}
	if entry.DisplayName == "" && entry.StorageKey != "" {
		entry.DisplayName = filepath.Base(entry.StorageKey)
	}
	return entry
}
