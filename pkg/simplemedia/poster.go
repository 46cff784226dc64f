package simplemedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
)

// ExtractPoster grabs a still frame from a stored video and writes it under
// thumbnails/. There is no existence pre-check; every call regenerates and
// overwrites the same poster key.
func (s *service) ExtractPoster(ctx context.Context, req ExtractPosterRequest) (*Poster, error) {
	key := strings.TrimLeft(strings.TrimSpace(req.SourceKey), "/")
	if key == "" {
		return nil, fmt.Errorf("%w: key", ErrMissingField)
	}
	if !objectkey.IsSafe(key) {
		return nil, fmt.Errorf("%w: key %q", ErrInvalidReference, req.SourceKey)
	}
	if s.frames == nil {
		return nil, fmt.Errorf("%w: no frame extractor configured", ErrFrameExtractionFailure)
	}

	start := time.Now()
	poster, err := s.extractPoster(ctx, key)
	if err != nil {
		s.metrics.PosterObserved(resultError, time.Since(start))
		s.logger.Warn("poster extraction failed", "source", key, "kind", Kind(err), "error", err)
		return nil, err
	}
	s.metrics.PosterObserved("extracted", time.Since(start))

	if id := strings.TrimSpace(req.EntryID); id != "" {
		poster.EntryID = s.attachPoster(ctx, id, poster)
	}

	s.logger.Info("poster extracted", "source", key, "poster", poster.Key, "entry", poster.EntryID)
	s.publish(ctx, EventPosterExtracted, NamespaceVideos, poster.EntryID, poster.Key)
	return poster, nil
}

func (s *service) extractPoster(ctx context.Context, key string) (*Poster, error) {
	ctx, cancel := context.WithTimeout(ctx, s.videoTimeout)
	defer cancel()

	frame, err := s.readFrame(ctx, key)
	if err != nil {
		return nil, err
	}

	res, err := s.transform.EncodePoster(ctx, frame, s.posterWidth)
	if err != nil {
		if ctx.Err() != nil {
			return nil, deadlineFailure(ctx.Err())
		}
		return nil, err
	}

	posterKey := objectkey.PosterKey(key)
	err = s.store.Put(ctx, posterKey, bytes.NewReader(res.Data), PutOptions{
		ContentType:  res.ContentType,
		CacheControl: ImmutableCacheControl,
	})
	if err != nil {
		return nil, storageFailure(err)
	}

	return &Poster{
		SourceKey: key,
		Key:       posterKey,
		URL:       s.urls.PublicURL(posterKey),
	}, nil
}

// readFrame spools the video to a scratch file for the extractor. The file
// is removed on every return path.
func (s *service) readFrame(ctx context.Context, key string) (image.Image, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, key)
		}
		return nil, storageFailure(err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "poster-*"+path.Ext(key))
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(rc, s.maxSourceBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, deadlineFailure(ctx.Err())
		}
		return nil, storageFailure(err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("write scratch file: %w", closeErr)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrDecodeFailure, key)
	}
	if n > s.maxSourceBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrSourceTooLarge, key, s.maxSourceBytes)
	}

	frame, err := s.frames.ExtractFrame(ctx, tmp.Name(), s.posterOffset)
	if errors.Is(err, ErrFrameExtractionFailure) && s.posterOffset > 0 && ctx.Err() == nil {
		// Clips shorter than the offset fall back to their first frame.
		s.logger.Debug("no frame at offset, retrying first frame", "source", key, "offset", s.posterOffset)
		frame, err = s.frames.ExtractFrame(ctx, tmp.Name(), 0)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, deadlineFailure(ctx.Err())
		}
		return nil, err
	}
	return frame, nil
}

// attachPoster records the poster on the video entry matched by id, or by
// source key when no entry has that id. It returns the updated entry id, or
// "" when nothing matched.
func (s *service) attachPoster(ctx context.Context, id string, poster *Poster) string {
	entry, err := s.index.FindByID(ctx, NamespaceVideos, id)
	if errors.Is(err, ErrEntryNotFound) {
		entry, err = s.index.FindByKey(ctx, NamespaceVideos, poster.SourceKey)
	}
	if err != nil {
		s.logger.Warn("no video entry for poster", "id", id, "source", poster.SourceKey, "error", err)
		return ""
	}

	if _, err := s.index.UpdatePoster(ctx, NamespaceVideos, entry.ID, poster.Key, poster.URL); err != nil {
		s.logger.Warn("poster entry update failed", "id", entry.ID, "error", err)
		return ""
	}
	return entry.ID
}
