package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
)

// Report counts what one namespace import did.
type Report struct {
	Imported int
	Skipped  int
	Uploaded int
	Missing  int
}

func (r Report) String() string {
	return fmt.Sprintf("imported=%d skipped=%d uploaded=%d missing=%d", r.Imported, r.Skipped, r.Uploaded, r.Missing)
}

// Importer writes legacy entries into an index and, when migrating, their
// files into an object store.
type Importer struct {
	index   simplemedia.Index
	store   simplemedia.ObjectStore
	urls    simplemedia.URLStrategy
	logger  *slog.Logger
	stamper *objectkey.Stamper
	now     func() time.Time
}

// ImporterOption configures an Importer
type ImporterOption func(*Importer)

// WithLogger sets the progress logger
func WithLogger(logger *slog.Logger) ImporterOption {
	return func(im *Importer) {
		im.logger = logger
	}
}

// WithClock sets the clock used for undated entries and fallback keys
func WithClock(now func() time.Time) ImporterOption {
	return func(im *Importer) {
		im.now = now
	}
}

// NewImporter creates an importer over the given collaborators
func NewImporter(index simplemedia.Index, store simplemedia.ObjectStore, urls simplemedia.URLStrategy, opts ...ImporterOption) *Importer {
	im := &Importer{
		index:  index,
		store:  store,
		urls:   urls,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	im.stamper = objectkey.NewStamper(im.now)
	return im
}

// ImportIndex loads root/data/{ns}.json for every namespace.
func (im *Importer) ImportIndex(ctx context.Context, root string) (map[simplemedia.Namespace]Report, error) {
	reports := make(map[simplemedia.Namespace]Report)
	for _, ns := range simplemedia.Namespaces() {
		entries, err := ReadLegacyIndex(LegacyIndexPath(root, ns))
		if err != nil {
			return reports, err
		}
		report, err := im.Import(ctx, ns, entries)
		reports[ns] = report
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// Import inserts entries, given newest first, so the index keeps their
// order. Entries whose id or key is already indexed are skipped.
func (im *Importer) Import(ctx context.Context, ns simplemedia.Namespace, entries []LegacyEntry) (Report, error) {
	var report Report
	for i := len(entries) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry := entries[i].mediaEntry(ns, im.urls, im.now())
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.StorageKey != "" && !objectkey.IsSafe(entry.StorageKey) {
			im.logger.Warn("skipping entry with unsafe key", "type", ns, "id", entry.ID, "key", entry.StorageKey)
			report.Skipped++
			continue
		}

		if _, err := im.index.FindByID(ctx, ns, entry.ID); err == nil {
			report.Skipped++
			continue
		} else if !errors.Is(err, simplemedia.ErrEntryNotFound) {
			return report, err
		}

		err := im.index.Insert(ctx, ns, entry)
		if errors.Is(err, simplemedia.ErrDuplicateKey) {
			report.Skipped++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("insert %s/%s: %w", ns, entry.ID, err)
		}
		report.Imported++
	}

	im.logger.Info("legacy index imported", "type", ns, "imported", report.Imported, "skipped", report.Skipped)
	return report, nil
}

// MigrateUploads copies oldRoot/uploads/{type}/* files referenced by the old
// JSON indexes into the store, then imports the entries.
func (im *Importer) MigrateUploads(ctx context.Context, oldRoot string) (map[simplemedia.Namespace]Report, error) {
	reports := make(map[simplemedia.Namespace]Report)
	for _, ns := range simplemedia.Namespaces() {
		entries, err := ReadLegacyIndex(LegacyIndexPath(oldRoot, ns))
		if err != nil {
			return reports, err
		}

		var report Report
		for i := range entries {
			uploaded, err := im.migrateFile(ctx, oldRoot, ns, &entries[i])
			if err != nil {
				return reports, err
			}
			if uploaded {
				report.Uploaded++
			} else if entries[i].YoutubeID == "" && !isRemote(entries[i].URL) {
				report.Missing++
			}
		}

		imported, err := im.Import(ctx, ns, entries)
		report.Imported, report.Skipped = imported.Imported, imported.Skipped
		reports[ns] = report
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// migrateFile uploads the local file backing e, assigning e.Key when the
// entry had none. It reports whether a file was uploaded.
func (im *Importer) migrateFile(ctx context.Context, oldRoot string, ns simplemedia.Namespace, e *LegacyEntry) (bool, error) {
	if e.YoutubeID != "" {
		return false, nil
	}

	key := e.keyFor()
	if key == "" && e.Name != "" {
		key = objectkey.UploadKey(ns.KeyPrefix(), im.stamper.Next(), e.Name)
	}
	if key == "" {
		im.logger.Warn("legacy entry has no key, url or name", "type", ns, "id", e.ID)
		return false, nil
	}
	e.Key = key

	local := filepath.Join(oldRoot, "uploads", string(ns), path.Base(key))
	f, err := os.Open(local)
	if errors.Is(err, os.ErrNotExist) {
		if !isRemote(e.URL) {
			im.logger.Warn("missing local file for entry", "type", ns, "id", e.ID, "file", local)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	contentType := e.ContentType
	if contentType == "" {
		contentType = contentTypeByName(local)
	}
	if err := im.store.Put(ctx, key, f, simplemedia.PutOptions{ContentType: contentType}); err != nil {
		return false, fmt.Errorf("upload %s: %w", key, err)
	}
	e.ContentType = contentType

	im.logger.Info("uploaded legacy file", "type", ns, "file", local, "key", key)
	return true, nil
}

func contentTypeByName(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func isRemote(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}
