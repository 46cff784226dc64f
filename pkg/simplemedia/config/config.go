package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Storage and index URL schemes.
const (
	SchemeMemory   = "memory"
	SchemeFile     = "file"
	SchemeS3       = "s3"
	SchemeMinIO    = "minio"
	SchemeBolt     = "bolt"
	SchemePostgres = "postgres"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		LogLevel:       "info",
		StorageURL:     "memory://",
		IndexURL:       "memory://",
		IndexMigrate:   true,
		S3:             S3Config{Region: "us-east-1"},
		UploadURLTTL:   15 * time.Minute,
		ImageTimeout:   30 * time.Second,
		VideoTimeout:   2 * time.Minute,
		MaxSourceBytes: 200 << 20,
		FFmpegPath:     "ffmpeg",
		PosterWidth:    640,
		PosterOffset:   2 * time.Second,
	}
}

// ServerConfig represents server configuration for the simple-media service.
// The env tags are read by WithEnv.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

	// Object store: memory://, file:///dir, s3://bucket or minio://host:port/bucket
	StorageURL string `env:"STORAGE_URL" env-default:"memory://"`

	// Metadata index: memory://, bolt:///path.db or postgres://...
	IndexURL     string `env:"INDEX_URL" env-default:"memory://"`
	IndexMigrate bool   `env:"INDEX_MIGRATE" env-default:"true"`

	// PublicURLBase is the public prefix of stored objects. For memory and
	// file stores it is this server's own address.
	PublicURLBase string `env:"PUBLIC_URL_BASE"`

	S3    S3Config
	MinIO MinIOConfig

	UploadURLTTL     time.Duration `env:"UPLOAD_URL_TTL" env-default:"15m"`
	PresignSecret    string        `env:"PRESIGN_SECRET"`
	StrictCompletion bool          `env:"STRICT_COMPLETION" env-default:"false"`

	ImageTimeout   time.Duration `env:"IMAGE_TIMEOUT" env-default:"30s"`
	VideoTimeout   time.Duration `env:"VIDEO_TIMEOUT" env-default:"2m"`
	MaxSourceBytes int64         `env:"MAX_SOURCE_BYTES" env-default:"209715200"`

	FFmpegPath   string        `env:"FFMPEG_PATH" env-default:"ffmpeg"`
	PosterWidth  int           `env:"POSTER_WIDTH" env-default:"640"`
	PosterOffset time.Duration `env:"POSTER_OFFSET" env-default:"2s"`

	AnalyticsURL string   `env:"ANALYTICS_URL"`
	JWTSecret    string   `env:"JWT_SECRET"`
	CORSOrigins  []string `env:"CORS_ORIGINS" env-separator:","`
}

// S3Config holds settings for s3:// storage URLs
type S3Config struct {
	Region          string `env:"S3_REGION" env-default:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	CreateBucket    bool   `env:"S3_CREATE_BUCKET" env-default:"false"`
}

// MinIOConfig holds settings for minio:// storage URLs
type MinIOConfig struct {
	AccessKey    string `env:"MINIO_ACCESS_KEY"`
	SecretKey    string `env:"MINIO_SECRET_KEY"`
	UseSSL       bool   `env:"MINIO_USE_SSL" env-default:"false"`
	EnsureBucket bool   `env:"MINIO_ENSURE_BUCKET" env-default:"true"`
	PublicRead   bool   `env:"MINIO_PUBLIC_READ" env-default:"false"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	storage, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return err
	}
	if _, err := ParseIndexURL(c.IndexURL); err != nil {
		return err
	}
	if storage.Scheme == SchemeMinIO && c.MinIO.AccessKey == "" && c.S3.AccessKeyID == "" {
		return errors.New("minio storage requires MINIO_ACCESS_KEY or AWS_ACCESS_KEY_ID")
	}
	if c.IsProduction() && storage.Local() && c.PresignSecret == "" {
		return errors.New("presign secret is required for local storage in production")
	}

	if c.UploadURLTTL <= 0 {
		return errors.New("upload url ttl must be positive")
	}
	if c.ImageTimeout <= 0 || c.VideoTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.MaxSourceBytes <= 0 {
		return errors.New("max source bytes must be positive")
	}
	if c.PosterWidth <= 0 {
		return errors.New("poster width must be positive")
	}
	if c.PosterOffset < 0 {
		return errors.New("poster offset cannot be negative")
	}
	if c.PublicURLBase != "" {
		if _, err := url.ParseRequestURI(c.PublicURLBase); err != nil {
			return fmt.Errorf("invalid public url base: %w", err)
		}
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// BaseURL returns PublicURLBase, or this server's localhost address when unset.
func (c *ServerConfig) BaseURL() string {
	if c.PublicURLBase != "" {
		return strings.TrimRight(c.PublicURLBase, "/")
	}
	return "http://localhost:" + c.Port
}

// StorageLocation is a parsed STORAGE_URL
type StorageLocation struct {
	Scheme   string
	Path     string // file
	Bucket   string // s3, minio
	Endpoint string // minio host:port
	Query    url.Values
}

// Local reports whether objects are written through this process.
func (l StorageLocation) Local() bool {
	return l.Scheme == SchemeMemory || l.Scheme == SchemeFile
}

// ParseStorageURL parses memory://, file:///dir, s3://bucket?region=... and
// minio://host:port/bucket.
func ParseStorageURL(raw string) (StorageLocation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == SchemeMemory || raw == "memory://" {
		return StorageLocation{Scheme: SchemeMemory}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return StorageLocation{}, fmt.Errorf("invalid STORAGE_URL %q: %w", raw, err)
	}

	loc := StorageLocation{Scheme: u.Scheme, Query: u.Query()}
	switch u.Scheme {
	case SchemeFile:
		loc.Path = u.Host + u.Path
		if loc.Path == "" {
			return StorageLocation{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
	case SchemeS3:
		loc.Bucket = u.Host
		if loc.Bucket == "" {
			return StorageLocation{}, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
	case SchemeMinIO:
		loc.Endpoint = u.Host
		loc.Bucket = strings.Trim(u.Path, "/")
		if loc.Endpoint == "" || loc.Bucket == "" {
			return StorageLocation{}, errors.New("minio STORAGE_URL must be minio://host:port/bucket")
		}
	default:
		return StorageLocation{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", raw)
	}
	return loc, nil
}

// IndexLocation is a parsed INDEX_URL
type IndexLocation struct {
	Scheme string
	Path   string // bolt file
	DSN    string // postgres connection string
}

// ParseIndexURL parses memory://, bolt:///path.db and postgres:// or postgresql:// URLs.
func ParseIndexURL(raw string) (IndexLocation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == SchemeMemory || raw == "memory://" {
		return IndexLocation{Scheme: SchemeMemory}, nil
	}
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return IndexLocation{Scheme: SchemePostgres, DSN: raw}, nil
	}
	if strings.HasPrefix(raw, "bolt://") {
		path := strings.TrimPrefix(raw, "bolt://")
		if path == "" {
			return IndexLocation{}, errors.New("bolt path cannot be empty in INDEX_URL")
		}
		return IndexLocation{Scheme: SchemeBolt, Path: path}, nil
	}
	return IndexLocation{}, fmt.Errorf("unsupported INDEX_URL format: %s (use 'memory://', 'bolt:///path.db' or 'postgres://...')", raw)
}
