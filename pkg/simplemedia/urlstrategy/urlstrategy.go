// Package urlstrategy derives public object locators from storage keys.
// Every strategy is a pure function of the key and its configured base.
package urlstrategy

import (
	"fmt"
	"net/url"
	"strings"
)

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// StrategyTypeCDN serves keys from a configured public base (CDN or bucket website)
	StrategyTypeCDN URLStrategyType = "cdn"

	// StrategyTypeS3 serves keys from the bucket's virtual-hosted endpoint
	StrategyTypeS3 URLStrategyType = "s3"

	// StrategyTypeLocal serves keys through the application's /blobs route
	StrategyTypeLocal URLStrategyType = "local"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type    URLStrategyType
	BaseURL string // For CDN and local strategies
	Bucket  string // For S3 strategy
	Region  string // For S3 strategy, defaults to us-east-1
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (Strategy, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.BaseURL == "" {
			return nil, fmt.Errorf("base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.BaseURL), nil

	case StrategyTypeS3:
		if config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 strategy")
		}
		return NewS3Strategy(config.Bucket, config.Region), nil

	case StrategyTypeLocal:
		return NewLocalStrategy(config.BaseURL), nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}

// Strategy derives the public URL of a key
type Strategy interface {
	PublicURL(key string) string
}

// CDNStrategy joins keys onto a fixed public base
type CDNStrategy struct {
	BaseURL string
}

// NewCDNStrategy creates a CDN strategy. Trailing slashes on the base are dropped.
func NewCDNStrategy(baseURL string) *CDNStrategy {
	return &CDNStrategy{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *CDNStrategy) PublicURL(key string) string {
	return s.BaseURL + "/" + EscapeKey(key)
}

// S3Strategy points at the bucket's virtual-hosted S3 endpoint
type S3Strategy struct {
	Bucket string
	Region string
}

// NewS3Strategy creates an S3 strategy. An empty region means us-east-1.
func NewS3Strategy(bucket, region string) *S3Strategy {
	if region == "" {
		region = "us-east-1"
	}
	return &S3Strategy{Bucket: bucket, Region: region}
}

func (s *S3Strategy) PublicURL(key string) string {
	// us-east-1 keeps the legacy global endpoint
	if s.Region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.Bucket, EscapeKey(key))
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Bucket, s.Region, EscapeKey(key))
}

// LocalStrategy routes keys through the application's blob endpoint
type LocalStrategy struct {
	BaseURL string
}

// NewLocalStrategy creates a local strategy. An empty base yields root-relative URLs.
func NewLocalStrategy(baseURL string) *LocalStrategy {
	return &LocalStrategy{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *LocalStrategy) PublicURL(key string) string {
	return s.BaseURL + "/blobs/" + EscapeKey(key)
}

// EscapeKey escapes each segment of a key while keeping its slashes.
func EscapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
