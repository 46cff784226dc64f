package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithStorageURL selects the object store
func WithStorageURL(raw string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseStorageURL(raw); err != nil {
			return err
		}
		c.StorageURL = raw
		return nil
	}
}

// WithIndexURL selects the metadata index
func WithIndexURL(raw string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseIndexURL(raw); err != nil {
			return err
		}
		c.IndexURL = raw
		return nil
	}
}

// WithPublicURLBase sets the public prefix of stored objects
func WithPublicURLBase(base string) Option {
	return func(c *ServerConfig) error {
		c.PublicURLBase = base
		return nil
	}
}

// WithPresignSecret sets the HMAC key for local delegated uploads
func WithPresignSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.PresignSecret = secret
		return nil
	}
}

// WithUploadURLTTL sets how long delegated upload URLs stay valid
func WithUploadURLTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl <= 0 {
			return fmt.Errorf("upload url ttl must be positive, got %s", ttl)
		}
		c.UploadURLTTL = ttl
		return nil
	}
}

// WithTimeouts sets the image and video processing deadlines
func WithTimeouts(image, video time.Duration) Option {
	return func(c *ServerConfig) error {
		if image <= 0 || video <= 0 {
			return fmt.Errorf("timeouts must be positive")
		}
		c.ImageTimeout = image
		c.VideoTimeout = video
		return nil
	}
}

// WithStrictCompletion makes upload completion verify the object exists
func WithStrictCompletion(strict bool) Option {
	return func(c *ServerConfig) error {
		c.StrictCompletion = strict
		return nil
	}
}

// WithAnalyticsURL sets the CloudEvents collector endpoint
func WithAnalyticsURL(target string) Option {
	return func(c *ServerConfig) error {
		c.AnalyticsURL = target
		return nil
	}
}

// WithJWTSecret protects admin routes with HS256 bearer tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithFFmpeg sets the ffmpeg binary used for posters
func WithFFmpeg(path string) Option {
	return func(c *ServerConfig) error {
		c.FFmpegPath = path
		return nil
	}
}
