package simplemedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	resultHit       = "hit"
	resultGenerated = "generated"
	resultError     = "error"
)

// Resolve returns the derivative described by spec, generating it on a miss.
//
// An existing derivative is found with a single Head and nothing else is
// read. On a miss the source is fetched and transformed completely in memory
// and the encoded bytes are written last, so a concurrent Head never observes
// a partial object. Concurrent misses for one key within this process share
// a single generation.
func (s *service) Resolve(ctx context.Context, spec DerivativeSpec) (*Derivative, error) {
	spec, err := spec.Normalize()
	if err != nil {
		return nil, err
	}
	key := spec.Key()

	start := time.Now()
	d, err := s.resolve(ctx, spec, key)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		s.metrics.ResolveObserved(spec.Format, resultError, elapsed)
		s.logger.Warn("derivative resolve failed", "source", spec.SourceKey, "key", key, "kind", Kind(err), "error", err)
		return nil, err
	case d.Generated:
		s.metrics.ResolveObserved(spec.Format, resultGenerated, elapsed)
		s.logger.Info("derivative generated", "source", spec.SourceKey, "key", key, "duration", elapsed)
	default:
		s.metrics.ResolveObserved(spec.Format, resultHit, elapsed)
	}
	return d, nil
}

func (s *service) resolve(ctx context.Context, spec DerivativeSpec, key string) (*Derivative, error) {
	ctx, cancel := context.WithTimeout(ctx, s.imageTimeout)
	defer cancel()

	exists, err := s.store.Head(ctx, key)
	if err != nil {
		return nil, storageFailure(err)
	}
	if exists {
		return s.derivative(key, spec.Format, false), nil
	}

	// The shared generation runs on its own deadline so one caller leaving
	// does not fail the others waiting on the same key. A caller whose Head
	// missed just before a previous generation finished finds the object on
	// the second Head and does not write it again.
	ch := s.inflight.DoChan(key, func() (any, error) {
		genCtx, genCancel := context.WithTimeout(context.WithoutCancel(ctx), s.imageTimeout)
		defer genCancel()
		exists, err := s.store.Head(genCtx, key)
		if err != nil {
			return nil, storageFailure(err)
		}
		if exists {
			return nil, nil
		}
		return nil, s.generate(genCtx, spec, key)
	})

	select {
	case <-ctx.Done():
		return nil, deadlineFailure(ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
	}
	return s.derivative(key, spec.Format, true), nil
}

func (s *service) generate(ctx context.Context, spec DerivativeSpec, key string) error {
	src, err := s.fetchSource(ctx, spec.SourceKey)
	if err != nil {
		return err
	}

	res, err := s.transform.Transform(ctx, src, TransformOptions{
		Width:   spec.Width,
		Height:  spec.Height,
		Format:  spec.Format,
		Quality: spec.Quality,
	})
	if err != nil {
		if ctx.Err() != nil {
			return deadlineFailure(ctx.Err())
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return deadlineFailure(err)
	}

	err = s.store.Put(ctx, key, bytes.NewReader(res.Data), PutOptions{
		ContentType:  res.ContentType,
		CacheControl: ImmutableCacheControl,
	})
	return storageFailure(err)
}

// fetchSource reads a required source object fully into memory.
func (s *service) fetchSource(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, key)
		}
		return nil, storageFailure(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxSourceBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, deadlineFailure(ctx.Err())
		}
		return nil, storageFailure(err)
	}
	if int64(len(data)) > s.maxSourceBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrSourceTooLarge, key, s.maxSourceBytes)
	}
	return data, nil
}

func (s *service) derivative(key string, f Format, generated bool) *Derivative {
	return &Derivative{
		Key:          key,
		URL:          s.urls.PublicURL(key),
		ContentType:  f.ContentType(),
		CacheControl: ImmutableCacheControl,
		Generated:    generated,
	}
}

// deadlineFailure reports an expired deadline as ErrTimeout and passes
// cancellation through.
func deadlineFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
