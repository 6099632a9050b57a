package genai

import (
	"net/http"
	"time"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL sets the API root, e.g. https://generativelanguage.googleapis.com/v1beta.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithModel sets the model name.
func WithModel(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.model = name
		}
	}
}

// WithAPIKey sets the key sent with each request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithGeneration sets default sampling parameters.
func WithGeneration(g model.Generation) Option {
	return func(c *Client) { c.gen = mergeGeneration(c.gen, &g) }
}

// WithAttemptTimeout bounds a single attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// WithMaxAttempts sets the attempt budget per Complete call.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoffUnit scales every backoff formula (one second by default).
func WithBackoffUnit(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.unit = d
		}
	}
}

// WithSeed makes backoff jitter deterministic.
func WithSeed(seed int64) Option {
	return func(c *Client) { c.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
