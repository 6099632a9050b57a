package arbiter

import (
	"time"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
)

// Option applies a configuration option to the Arbiter.
type Option func(*Arbiter)

// WithSystemPrompt sets the arbiter's instructions.
func WithSystemPrompt(s string) Option {
	return func(a *Arbiter) {
		if s != "" {
			a.system = s
		}
	}
}

// WithLabels sets how speakers are named in the rendered transcript.
func WithLabels(labels map[model.Speaker]string) Option {
	return func(a *Arbiter) {
		if len(labels) > 0 {
			a.labels = labels
		}
	}
}

// WithAttempts sets how many times the service is asked before giving up.
func WithAttempts(n int) Option {
	return func(a *Arbiter) {
		if n > 0 {
			a.attempts = n
		}
	}
}

// WithRetryDelay sets the fixed wait between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Arbiter) {
		if d >= 0 {
			a.delay = d
		}
	}
}

// WithGeneration overrides the sampling parameters for arbitration calls.
func WithGeneration(g model.Generation) Option {
	return func(a *Arbiter) { a.gen = g }
}

// WithStagnation configures the local repetition detector.
func WithStagnation(window int, similarity float64) Option {
	return func(a *Arbiter) {
		a.stagnation = StagnationDetector{Window: window, Similarity: similarity}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Arbiter) {
		if l != nil {
			a.logger = l
		}
	}
}
