package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/events"
	boltindex "github.com/tendant/simple-media/pkg/simplemedia/index/bolt"
	memoryindex "github.com/tendant/simple-media/pkg/simplemedia/index/memory"
	pgindex "github.com/tendant/simple-media/pkg/simplemedia/index/postgres"
	"github.com/tendant/simple-media/pkg/simplemedia/metrics"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	fsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	miniostorage "github.com/tendant/simple-media/pkg/simplemedia/storage/minio"
	s3storage "github.com/tendant/simple-media/pkg/simplemedia/storage/s3"
	"github.com/tendant/simple-media/pkg/simplemedia/transform"
	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
)

// Runtime holds a built service and the components the HTTP layer and
// command line tools reach directly.
type Runtime struct {
	Service simplemedia.Service
	Store   simplemedia.ObjectStore
	Index   simplemedia.Index
	URLs    simplemedia.URLStrategy
	Metrics *metrics.Prometheus

	// Signer is set only for stores written through this process.
	Signer *presigned.Signer

	closers []func(context.Context) error
}

// Close releases the index and flushes pending analytics events.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildService creates a Service and its collaborators from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	storage, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}
	if storage.Local() {
		rt.Signer, err = c.buildSigner(logger)
		if err != nil {
			return nil, err
		}
	}

	rt.Store, err = c.buildStore(ctx, storage, rt.Signer)
	if err != nil {
		return nil, fmt.Errorf("failed to build object store: %w", err)
	}

	rt.URLs, err = c.buildURLStrategy(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to build url strategy: %w", err)
	}

	rt.Index, err = c.buildIndex(ctx, rt)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	rt.Metrics, err = metrics.NewPrometheus(metrics.DefaultNamespace, nil)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	sink, err := c.buildEventSink(logger, rt)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to build event sink: %w", err)
	}

	options := []simplemedia.Option{
		simplemedia.WithObjectStore(rt.Store),
		simplemedia.WithIndex(rt.Index),
		simplemedia.WithURLStrategy(rt.URLs),
		simplemedia.WithEventSink(sink),
		simplemedia.WithMetrics(rt.Metrics),
		simplemedia.WithLogger(logger),
		simplemedia.WithTransformer(transform.NewImaging()),
		simplemedia.WithUploadTTL(c.UploadURLTTL),
		simplemedia.WithTimeouts(c.ImageTimeout, c.VideoTimeout),
		simplemedia.WithMaxSourceBytes(c.MaxSourceBytes),
		simplemedia.WithPoster(c.PosterWidth, c.PosterOffset),
		simplemedia.WithStrictCompletion(c.StrictCompletion),
	}

	ffmpeg := transform.NewFFmpeg(c.FFmpegPath, logger)
	if ffmpeg.Available() {
		options = append(options, simplemedia.WithFrameExtractor(ffmpeg))
	} else {
		logger.Warn("ffmpeg not found, video posters disabled", "path", c.FFmpegPath)
	}

	rt.Service, err = simplemedia.New(options...)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func (c *ServerConfig) buildSigner(logger *slog.Logger) (*presigned.Signer, error) {
	secret := c.PresignSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate presign secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("PRESIGN_SECRET not set, using a per-process secret")
	}
	return presigned.New(
		presigned.WithSecretKey(secret),
		presigned.WithBaseURL(c.BaseURL()),
	), nil
}

// buildStore creates an ObjectStore based on the storage location
func (c *ServerConfig) buildStore(ctx context.Context, loc StorageLocation, signer *presigned.Signer) (simplemedia.ObjectStore, error) {
	switch loc.Scheme {
	case SchemeMemory:
		return memorystorage.New(memorystorage.WithSigner(signer)), nil

	case SchemeFile:
		return fsstorage.New(fsstorage.Config{BaseDir: loc.Path, Signer: signer})

	case SchemeS3:
		cfg := s3storage.Config{
			Region:                 firstNonEmpty(loc.Query.Get("region"), c.S3.Region),
			Bucket:                 loc.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               firstNonEmpty(loc.Query.Get("endpoint"), c.S3.Endpoint),
			UsePathStyle:           c.S3.UsePathStyle || queryBool(loc, "path_style"),
			CreateBucketIfNotExist: c.S3.CreateBucket,
		}
		return s3storage.New(ctx, cfg)

	case SchemeMinIO:
		cfg := miniostorage.Config{
			Endpoint:     loc.Endpoint,
			AccessKey:    firstNonEmpty(c.MinIO.AccessKey, c.S3.AccessKeyID),
			SecretKey:    firstNonEmpty(c.MinIO.SecretKey, c.S3.SecretAccessKey),
			Bucket:       loc.Bucket,
			Region:       firstNonEmpty(loc.Query.Get("region"), c.S3.Region),
			UseSSL:       c.MinIO.UseSSL || queryBool(loc, "ssl"),
			EnsureBucket: c.MinIO.EnsureBucket,
			PublicRead:   c.MinIO.PublicRead,
		}
		return miniostorage.New(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported storage scheme: %s", loc.Scheme)
	}
}

// buildURLStrategy picks how public URLs are derived. A configured public
// base always wins so a CDN can front any store.
func (c *ServerConfig) buildURLStrategy(loc StorageLocation) (simplemedia.URLStrategy, error) {
	var cfg urlstrategy.Config
	switch {
	case loc.Local():
		cfg = urlstrategy.Config{Type: urlstrategy.StrategyTypeLocal, BaseURL: c.BaseURL()}
	case c.PublicURLBase != "":
		cfg = urlstrategy.Config{Type: urlstrategy.StrategyTypeCDN, BaseURL: c.PublicURLBase}
	case loc.Scheme == SchemeS3 && c.S3.Endpoint == "" && loc.Query.Get("endpoint") == "":
		cfg = urlstrategy.Config{Type: urlstrategy.StrategyTypeS3, Bucket: loc.Bucket, Region: firstNonEmpty(loc.Query.Get("region"), c.S3.Region)}
	case loc.Scheme == SchemeMinIO:
		scheme := "http"
		if c.MinIO.UseSSL || queryBool(loc, "ssl") {
			scheme = "https"
		}
		cfg = urlstrategy.Config{Type: urlstrategy.StrategyTypeCDN, BaseURL: scheme + "://" + loc.Endpoint + "/" + loc.Bucket}
	default:
		endpoint := strings.TrimRight(firstNonEmpty(loc.Query.Get("endpoint"), c.S3.Endpoint), "/")
		cfg = urlstrategy.Config{Type: urlstrategy.StrategyTypeCDN, BaseURL: endpoint + "/" + loc.Bucket}
	}
	return urlstrategy.NewURLStrategy(cfg)
}

// buildIndex creates an Index based on the configuration and registers its closer
func (c *ServerConfig) buildIndex(ctx context.Context, rt *Runtime) (simplemedia.Index, error) {
	loc, err := ParseIndexURL(c.IndexURL)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeMemory:
		return memoryindex.New(), nil

	case SchemeBolt:
		idx, err := boltindex.Open(loc.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return idx.Close() })
		return idx, nil

	case SchemePostgres:
		if c.IndexMigrate {
			if err := pgindex.Migrate(loc.DSN); err != nil {
				return nil, err
			}
		}
		pool, err := pgindex.Connect(ctx, loc.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { pool.Close(); return nil })
		return pgindex.New(pool), nil

	default:
		return nil, fmt.Errorf("unsupported index scheme: %s", loc.Scheme)
	}
}

func (c *ServerConfig) buildEventSink(logger *slog.Logger, rt *Runtime) (simplemedia.EventSink, error) {
	var next simplemedia.EventSink
	if c.AnalyticsURL != "" {
		ce, err := events.NewCloudEventsSink(c.AnalyticsURL, events.DefaultSource)
		if err != nil {
			return nil, err
		}
		next = ce
	} else if !c.IsProduction() {
		next = simplemedia.NewLoggingEventSink(logger)
	} else {
		return simplemedia.NewNoopEventSink(), nil
	}

	sink := events.NewAsyncSink(next, events.WithLogger(logger))
	rt.closers = append(rt.closers, sink.Close)
	return sink, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func queryBool(loc StorageLocation, key string) bool {
	if loc.Query == nil {
		return false
	}
	b, _ := strconv.ParseBool(loc.Query.Get(key))
	return b
}
