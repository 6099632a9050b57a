package service

import (
	"github.com/okian/callgen/internal/domain/arbiter"
	"github.com/okian/callgen/internal/domain/dialogue"
	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/persona"
	"github.com/okian/callgen/internal/domain/sampling"
	"github.com/okian/callgen/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of concurrent conversations.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCounts sets how many fraud and benign conversations to generate.
func WithCounts(fraud, normal int) Option {
	return func(s *Service) {
		s.counts = map[model.Kind]int{
			model.KindFraud:  max(fraud, 0),
			model.KindNormal: max(normal, 0),
		}
	}
}

// WithMode selects grid or stratified planning.
func WithMode(mode string) Option {
	return func(s *Service) {
		if mode == ModeGrid || mode == ModeStratified {
			s.mode = mode
		}
	}
}

// WithTurnRange sets the turn cap range for one kind.
func WithTurnRange(kind model.Kind, lo, hi int) Option {
	return func(s *Service) {
		s.turns[kind] = TurnRange{Min: lo, Max: hi}
	}
}

// WithSeed makes planning reproducible. Zero keeps a clock-based seed.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithSamplerOptions passes options to the profile sampler.
func WithSamplerOptions(opts ...sampling.Option) Option {
	return func(s *Service) {
		s.samplerOpts = append(s.samplerOpts, opts...)
	}
}

// WithScenarioWeights overrides occupation weights per scenario.
func WithScenarioWeights(w map[string]map[string]float64) Option {
	return func(s *Service) {
		s.scenarioPrior = w
	}
}

// WithCompleted lists task IDs that already have output; they are skipped.
func WithCompleted(ids []string) Option {
	return func(s *Service) {
		s.seen = append(s.seen, ids...)
	}
}

// WithTemplates replaces the prompt templates.
func WithTemplates(t persona.Templates) Option {
	return func(s *Service) {
		s.templates = t
	}
}

// WithArbiterPolicy sets the thresholds rendered into the arbiter prompt.
func WithArbiterPolicy(p persona.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithArbiterOptions passes options to the shared arbiter.
func WithArbiterOptions(opts ...arbiter.Option) Option {
	return func(s *Service) {
		s.arbiterOpts = append(s.arbiterOpts, opts...)
	}
}

// WithSessionOptions passes options to every dialogue session.
func WithSessionOptions(opts ...dialogue.Option) Option {
	return func(s *Service) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
