package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads the whole configuration from the environment. Variables
// that are unset take their env-default values, so options meant to
// override the environment go after WithEnv.
//
// Server:
//
//	PORT, ENVIRONMENT, LOG_LEVEL
//
// Storage and index:
//
//	STORAGE_URL - memory:// (default), file:///path, s3://bucket, minio://host:port/bucket
//	INDEX_URL   - memory:// (default), bolt:///path.db, postgres://...
//	PUBLIC_URL_BASE, S3_REGION, S3_ENDPOINT, S3_USE_PATH_STYLE,
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, MINIO_USE_SSL
//
// Uploads and derivatives:
//
//	UPLOAD_URL_TTL, PRESIGN_SECRET, IMAGE_TIMEOUT, VIDEO_TIMEOUT,
//	MAX_SOURCE_BYTES, FFMPEG_PATH, POSTER_WIDTH, POSTER_OFFSET
//
// Integrations:
//
//	ANALYTICS_URL, JWT_SECRET, CORS_ORIGINS
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// Usage returns the environment variable help text.
func Usage() string {
	var cfg ServerConfig
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
