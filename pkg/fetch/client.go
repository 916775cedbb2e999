package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrBodyTooLarge is returned for responses longer than MaxBodyBytes. Such a
// body is never truncated or cached.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// HTTPDoer is the subset of *http.Client the fetch client needs, allowing
// injection of test doubles.
type HTTPDoer interface {
	Do(request *http.Request) (*http.Response, error)
}

// HTTPStatusError is a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Client fetches URLs through the cache, rate limiter, and retry loop:
// a fresh cache entry is served without network I/O; otherwise each attempt
// waits on the limiter, issues the request, and rejects challenge pages; the
// first good response is written through to the cache.
type Client struct {
	config     ClientConfig
	httpClient HTTPDoer
	cache      *Cache
	limiter    *RateLimiter
	policy     RetryPolicy
	metrics    *Metrics
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient HTTPDoer) Option {
	return func(client *Client) { client.httpClient = httpClient }
}

// WithCache uses an existing cache instead of creating one from CacheDir.
func WithCache(cache *Cache) Option {
	return func(client *Client) { client.cache = cache }
}

// WithRateLimiter shares a limiter between clients.
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(client *Client) { client.limiter = limiter }
}

// WithRetryPolicy replaces the retry policy derived from the config.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(client *Client) { client.policy = policy }
}

// WithMetrics records fetch events.
func WithMetrics(metrics *Metrics) Option {
	return func(client *Client) { client.metrics = metrics }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) { client.logger = logger }
}

// NewClient creates a Client. Zero config fields take their defaults.
func NewClient(config ClientConfig, options ...Option) (*Client, error) {
	config = config.withDefaults()

	client := &Client{
		config: config,
		policy: RetryPolicy{MaxAttempts: config.MaxAttempts, BaseDelay: config.RetryBaseDelay},
	}
	for _, option := range options {
		option(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(request *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	if client.limiter == nil {
		client.limiter = NewRateLimiter(config.RequestsPerSecond, config.Burst)
	}
	if client.cache == nil && config.CacheDir != "" {
		cache, err := NewCache(config.CacheDir, config.CacheTTL)
		if err != nil {
			return nil, err
		}
		client.cache = cache
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}

	return client, nil
}

// Cache returns the client's cache, or nil when caching is disabled.
func (client *Client) Cache() *Cache {
	return client.cache
}

// FetchText returns the body of url as text.
func (client *Client) FetchText(ctx context.Context, url string) (string, error) {
	body, err := client.fetch(ctx, url, TextBody)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes returns the raw body of url, for archives and other binaries.
func (client *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return client.fetch(ctx, url, BinaryBody)
}

func (client *Client) fetch(ctx context.Context, url string, kind BodyKind) ([]byte, error) {
	if client.cache != nil {
		if body, found := client.cache.get(kind, url); found {
			client.metrics.observeCache(true)
			client.logger.Debug("cache hit", "url", url)
			return body, nil
		}
		client.metrics.observeCache(false)
	}

	policy := client.policy
	policy.OnRetry = func(attempt int, delay time.Duration, reason error) {
		client.metrics.observeRetry()
		client.logger.Warn("fetch attempt failed, retrying",
			"url", url, "attempt", attempt, "delay", delay, "error", reason)
		if client.policy.OnRetry != nil {
			client.policy.OnRetry(attempt, delay, reason)
		}
	}

	outcome, err := Retry(ctx, policy, func(ctx context.Context, attemptNumber int) Outcome {
		return client.attempt(ctx, url, kind)
	})
	if err != nil {
		client.metrics.observeRequest("failed")
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	client.metrics.observeRequest("ok")

	if client.cache != nil {
		if err := client.cache.put(kind, url, outcome.Body, outcome.StatusCode); err != nil {
			client.logger.Warn("failed to write cache entry", "url", url, "error", err)
		}
	}
	return outcome.Body, nil
}

// attempt performs one rate-limited request and classifies the response.
func (client *Client) attempt(ctx context.Context, url string, kind BodyKind) Outcome {
	waited, err := client.limiter.Wait(ctx)
	client.metrics.observeWait(waited)
	if err != nil {
		return Fatal(fmt.Errorf("rate limiter wait cancelled: %w", err))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fatal(fmt.Errorf("failed to create request: %w", err))
	}
	request.Header.Set("User-Agent", client.config.UserAgent)
	if kind == TextBody {
		request.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Fatal(ctxErr)
		}
		return Retryable(err)
	}
	defer response.Body.Close()

	maxBytes := client.config.MaxBodyBytes
	if response.ContentLength > maxBytes {
		return Fatal(fmt.Errorf("%w: %s declares %d bytes, limit %d", ErrBodyTooLarge, url, response.ContentLength, maxBytes))
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxBytes+1))
	if err != nil {
		return Retryable(fmt.Errorf("failed to read body of %s: %w", url, err))
	}
	if int64(len(body)) > maxBytes {
		return Fatal(fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, url, maxBytes))
	}

	statusError := &HTTPStatusError{StatusCode: response.StatusCode, URL: url}
	switch {
	case response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500:
		return Retryable(statusError)
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return Fatal(statusError)
	}

	minBytes := client.config.MinBodyBytes
	if kind == BinaryBody {
		minBytes = 1
	}
	if err := DetectChallenge(body, minBytes); err != nil {
		client.metrics.observeChallenge()
		return Retryable(err)
	}

	return OK(body, response.StatusCode)
}

// IsChallenge reports whether err came from a challenge page or short body.
func IsChallenge(err error) bool {
	return errors.Is(err, ErrChallenge) || errors.Is(err, ErrShortBody)
}
