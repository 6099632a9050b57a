package genai

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/callgen/pkg/metrics"
	"github.com/okian/callgen/pkg/retry"
)

const (
	defaultInterval      = 500 * time.Millisecond
	defaultMaxInterval   = 2 * time.Second
	defaultJitter        = 200 * time.Millisecond
	defaultPenaltyFactor = 1.5
)

// RateLimiter spaces calls from every client sharing it. Each Wait reserves
// the next free slot, so two callers never start closer than the interval.
// The interval only grows (see Penalize).
type RateLimiter struct {
	mu          sync.Mutex
	last        time.Time
	interval    time.Duration
	maxInterval time.Duration
	jitter      time.Duration
	factor      float64
	rnd         *rand.Rand
	now         func() time.Time
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithInterval sets the starting minimum spacing.
func WithInterval(d time.Duration) LimiterOption {
	return func(l *RateLimiter) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithMaxInterval bounds how far Penalize can widen the interval.
func WithMaxInterval(d time.Duration) LimiterOption {
	return func(l *RateLimiter) {
		if d > 0 {
			l.maxInterval = d
		}
	}
}

// WithJitter sets the upper bound of the random delay added to waits.
func WithJitter(d time.Duration) LimiterOption {
	return func(l *RateLimiter) {
		if d >= 0 {
			l.jitter = d
		}
	}
}

// WithPenaltyFactor sets the multiplier applied by Penalize.
func WithPenaltyFactor(f float64) LimiterOption {
	return func(l *RateLimiter) {
		if f > 1 {
			l.factor = f
		}
	}
}

// WithLimiterSeed makes jitter deterministic.
func WithLimiterSeed(seed int64) LimiterOption {
	return func(l *RateLimiter) { l.rnd = rand.New(rand.NewSource(seed)) } //nolint:gosec // jitter only
}

// NewRateLimiter creates a limiter.
func NewRateLimiter(opts ...LimiterOption) *RateLimiter {
	l := &RateLimiter{
		interval:    defaultInterval,
		maxInterval: defaultMaxInterval,
		jitter:      defaultJitter,
		factor:      defaultPenaltyFactor,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter only
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxInterval < l.interval {
		l.maxInterval = l.interval
	}
	metrics.UpdateRateLimitInterval(float64(l.interval.Milliseconds()))
	return l
}

// Wait blocks until the caller's reserved slot. The slot stays consumed even
// when ctx ends first.
func (l *RateLimiter) Wait(ctx context.Context) error {
	wait := l.reserve()
	metrics.RecordRateLimitWait(float64(wait.Milliseconds()))
	return retry.Sleep(ctx, wait)
}

func (l *RateLimiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var wait time.Duration
	if next := l.last.Add(l.interval); now.Before(next) {
		wait = next.Sub(now)
		if l.jitter > 0 {
			wait += time.Duration(l.rnd.Int63n(int64(l.jitter) + 1))
		}
	}
	l.last = now.Add(wait)
	return wait
}

// Penalize widens the interval after a rate-limit reply. It never shrinks back.
func (l *RateLimiter) Penalize() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := time.Duration(float64(l.interval) * l.factor)
	if next > l.maxInterval {
		next = l.maxInterval
	}
	l.interval = next
	metrics.RecordRateLimitPenalty()
	metrics.UpdateRateLimitInterval(float64(next.Milliseconds()))
	return next
}

// Interval returns the current spacing.
func (l *RateLimiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}
