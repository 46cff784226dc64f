package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
)

const (
	backendName = "fs"
	metaDir     = ".meta"
)

// Backend is a filesystem implementation of the simplemedia.ObjectStore interface.
// Objects live at {BaseDir}/{key}; stored headers live at {BaseDir}/.meta/{key}.json.
type Backend struct {
	baseDir string
	signer  *presigned.Signer
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string            // Base directory for storing files
	Signer  *presigned.Signer // Optional signer for delegated PUT URLs
}

type headers struct {
	ContentType  string `json:"contentType"`
	CacheControl string `json:"cacheControl,omitempty"`
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: baseDir, signer: config.Signer}, nil
}

func (b *Backend) storageErr(key, op string, err error) error {
	return &simplemedia.StorageError{Backend: backendName, Key: key, Op: op, Err: err}
}

func (b *Backend) paths(key string) (data, meta string, err error) {
	if !objectkey.IsSafe(key) || key == metaDir || strings.HasPrefix(key, metaDir+"/") {
		return "", "", fmt.Errorf("%w: key %q", simplemedia.ErrInvalidReference, key)
	}
	rel := filepath.FromSlash(key)
	return filepath.Join(b.baseDir, rel), filepath.Join(b.baseDir, metaDir, rel+".json"), nil
}

// Put writes to a temp file in the destination directory and renames it into
// place, so readers never see a partial object.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, opts simplemedia.PutOptions) error {
	dataPath, metaPath, err := b.paths(key)
	if err != nil {
		return b.storageErr(key, "put", err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	meta, err := json.Marshal(headers{ContentType: contentType, CacheControl: opts.CacheControl})
	if err != nil {
		return b.storageErr(key, "put", err)
	}
	if err := writeAtomic(metaPath, strings.NewReader(string(meta))); err != nil {
		return b.storageErr(key, "put", err)
	}
	if err := ctx.Err(); err != nil {
		return b.storageErr(key, "put", err)
	}
	if err := writeAtomic(dataPath, r); err != nil {
		return b.storageErr(key, "put", err)
	}
	return nil
}

func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Get opens the object for reading
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	dataPath, _, err := b.paths(key)
	if err != nil {
		return nil, b.storageErr(key, "get", err)
	}

	file, err := os.Open(dataPath)
	if os.IsNotExist(err) {
		return nil, b.storageErr(key, "get", simplemedia.ErrObjectNotFound)
	} else if err != nil {
		return nil, b.storageErr(key, "get", err)
	}
	return file, nil
}

// Head reports whether the object exists
func (b *Backend) Head(ctx context.Context, key string) (bool, error) {
	dataPath, _, err := b.paths(key)
	if err != nil {
		return false, b.storageErr(key, "head", err)
	}

	info, err := os.Stat(dataPath)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, b.storageErr(key, "head", err)
	}
	return !info.IsDir(), nil
}

// Stat returns stored headers for the object
func (b *Backend) Stat(ctx context.Context, key string) (*simplemedia.ObjectInfo, error) {
	dataPath, metaPath, err := b.paths(key)
	if err != nil {
		return nil, b.storageErr(key, "stat", err)
	}

	info, err := os.Stat(dataPath)
	if os.IsNotExist(err) || (err == nil && info.IsDir()) {
		return nil, b.storageErr(key, "stat", simplemedia.ErrObjectNotFound)
	} else if err != nil {
		return nil, b.storageErr(key, "stat", err)
	}

	h := headers{ContentType: "application/octet-stream"}
	if raw, err := os.ReadFile(metaPath); err == nil {
		_ = json.Unmarshal(raw, &h)
	}

	return &simplemedia.ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		ContentType:  h.ContentType,
		CacheControl: h.CacheControl,
	}, nil
}

// Delete removes the object and its headers. Deleting a missing key succeeds.
func (b *Backend) Delete(ctx context.Context, key string) error {
	dataPath, metaPath, err := b.paths(key)
	if err != nil {
		return b.storageErr(key, "delete", err)
	}

	if err := os.Remove(dataPath); err != nil && !os.IsNotExist(err) {
		return b.storageErr(key, "delete", err)
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return b.storageErr(key, "delete", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(dataPath))
	b.cleanupEmptyDirectories(filepath.Dir(metaPath))
	return nil
}

// PresignPut issues a signed application URL for one PUT of contentType to key
func (b *Backend) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if b.signer == nil {
		return "", b.storageErr(key, "presign", errors.New("no signer configured"))
	}
	u, err := b.signer.SignPut(key, contentType, ttl)
	if err != nil {
		return "", b.storageErr(key, "presign", err)
	}
	return u, nil
}

// Walk calls fn for every stored key under prefix, in lexical order.
func (b *Backend) Walk(prefix string, fn func(key string) error) error {
	root := filepath.Join(b.baseDir, filepath.FromSlash(prefix))
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == metaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel))
	})
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || dir == filepath.Join(b.baseDir, metaDir) || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
