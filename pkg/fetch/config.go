// Package fetch acquires remote statute material politely and idempotently:
// every request passes a shared rate limiter, successful responses are
// written through to a disk cache, and transient failures and anti-bot
// challenge pages are retried with exponential backoff.
package fetch

import (
	"time"
)

// DefaultRequestsPerSecond is the default sustained request rate.
const DefaultRequestsPerSecond = 2.0

// DefaultCacheTTL is the default age after which a cached response is refetched.
const DefaultCacheTTL = 7 * 24 * time.Hour

// DefaultMaxAttempts is the default number of attempts per request.
const DefaultMaxAttempts = 3

// DefaultRetryBaseDelay is the delay before the first retry; later retries double it.
const DefaultRetryBaseDelay = 3 * time.Second

// DefaultMaxRetryDelay caps a single backoff sleep.
const DefaultMaxRetryDelay = 2 * time.Minute

// DefaultFetchTimeout is the default per-request timeout.
const DefaultFetchTimeout = 60 * time.Second

// DefaultMinBodyBytes is the shortest text body accepted as real content.
const DefaultMinBodyBytes = 500

// DefaultMaxBodyBytes bounds how much of a response body is read.
const DefaultMaxBodyBytes = 256 << 20

// DefaultUserAgent identifies the pipeline to remote servers.
const DefaultUserAgent = "Mozilla/5.0 (compatible; statutes-ingest/1.0; +https://github.com/coolbeans/statutes)"

// ClientConfig holds configuration for a fetch Client.
type ClientConfig struct {
	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Timeout is the per-request timeout of the default HTTP client.
	Timeout time.Duration

	// RequestsPerSecond is the sustained rate of the default rate limiter.
	RequestsPerSecond float64

	// Burst is the number of requests allowed within one rate window.
	// Zero derives it from RequestsPerSecond.
	Burst int

	// CacheDir is the directory for the response cache. If empty and no
	// cache is supplied, caching is disabled.
	CacheDir string

	// CacheTTL is the maximum age of a served cache entry.
	CacheTTL time.Duration

	// MaxAttempts is the maximum number of attempts per request.
	MaxAttempts int

	// RetryBaseDelay is the sleep before the first retry.
	RetryBaseDelay time.Duration

	// MinBodyBytes is the shortest text body accepted as real content.
	MinBodyBytes int

	// MaxBodyBytes bounds how much of a response body is read.
	MaxBodyBytes int64
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:         DefaultUserAgent,
		Timeout:           DefaultFetchTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		CacheTTL:          DefaultCacheTTL,
		MaxAttempts:       DefaultMaxAttempts,
		RetryBaseDelay:    DefaultRetryBaseDelay,
		MinBodyBytes:      DefaultMinBodyBytes,
		MaxBodyBytes:      DefaultMaxBodyBytes,
	}
}

// withDefaults fills zero fields from DefaultClientConfig.
func (config ClientConfig) withDefaults() ClientConfig {
	defaults := DefaultClientConfig()
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.MinBodyBytes <= 0 {
		config.MinBodyBytes = defaults.MinBodyBytes
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	return config
}
