// Package genai is the resilient request layer in front of a Gemini-compatible
// generateContent endpoint: shared rate limiting, classified retries and
// per-attempt timeouts.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
	"github.com/okian/callgen/pkg/metrics"
	"github.com/okian/callgen/pkg/retry"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel          = "gemini-2.0-flash"
	defaultAttemptTimeout = 90 * time.Second
	defaultMaxAttempts    = 5
	maxErrorBody          = 4 << 10
)

// Client calls the remote service. Safe for concurrent use.
type Client struct {
	http           *http.Client
	baseURL        string
	model          string
	apiKey         string
	limiter        *RateLimiter
	gen            model.Generation
	attemptTimeout time.Duration
	maxAttempts    int
	unit           time.Duration
	seed           int64
	logger         logger.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// New creates a client. Every client built from the same limiter shares its pacing.
func New(limiter *RateLimiter, opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{},
		baseURL:        defaultBaseURL,
		model:          defaultModel,
		limiter:        limiter,
		gen:            model.Generation{Temperature: 0.8, MaxTokens: 2048, TopP: 0.9, TopK: 40},
		attemptTimeout: defaultAttemptTimeout,
		maxAttempts:    defaultMaxAttempts,
		unit:           time.Second,
		seed:           time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter()
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("genai")
	}
	c.rnd = rand.New(rand.NewSource(c.seed)) //nolint:gosec // jitter only
	return c
}

// Complete returns the generated text for p. It never returns a partial
// string: on failure the text is empty and the error wraps ErrExhausted when
// the retry budget ran out.
func (c *Client) Complete(ctx context.Context, p model.Prompt) (string, error) {
	body, err := json.Marshal(buildRequest(p, mergeGeneration(c.gen, p.Generation)))
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		Retryable:   retryable,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			metrics.RecordRequestRetry()
			c.logger.Warn(ctx, "generation attempt failed, retrying",
				logger.Int("attempt", attempt+1),
				logger.Duration("backoff", wait),
				logger.Error(err))
		},
	}

	text, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		return c.attempt(ctx, body)
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			metrics.RecordRequest("exhausted")
			c.logger.Error(ctx, "generation failed", logger.Int("attempts", c.maxAttempts), logger.Error(err))
			return "", fmt.Errorf("%w: %w", ErrExhausted, err)
		}
		return "", err
	}
	return text, nil
}

func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	actx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.send(actx, body)
	metrics.RecordRequestLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, c.attemptTimeout, err)
		}
		if errors.Is(err, ErrRateLimited) {
			c.limiter.Penalize()
		}
		metrics.RecordRequest(outcome(err))
		return "", err
	}
	metrics.RecordRequest("success")
	return text, nil
}

func (c *Client) endpoint() string {
	u := strings.TrimRight(c.baseURL, "/") + "/models/" + url.PathEscape(c.model) + ":generateContent"
	if c.apiKey != "" {
		u += "?" + url.Values{"key": {c.apiKey}}.Encode()
	}
	return u
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	text, ok := out.text()
	if !ok {
		return "", ErrNoCandidates
	}
	return text, nil
}

// backoff picks the wait for the failure kind, in units of c.unit:
// rate limited min(2^n,60)*U(0.5,1.5), server min(2^n,30)+U(0,5),
// transport/timeout min(5(n+1),30), anything else 2^n.
func (c *Client) backoff(attempt int, err error) time.Duration {
	pow := math.Pow(2, float64(attempt))
	var units float64
	switch {
	case errors.Is(err, ErrRateLimited):
		units = math.Min(pow, 60) * (0.5 + c.uniform())
	case errors.Is(err, ErrServer):
		units = math.Min(pow, 30) + 5*c.uniform()
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTransport):
		units = math.Min(5*float64(attempt+1), 30)
	default:
		units = pow
	}
	return time.Duration(units * float64(c.unit))
}

func (c *Client) uniform() float64 {
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.rnd.Float64()
}
