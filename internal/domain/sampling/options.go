package sampling

import (
	"math/rand"
	"sort"
)

// Option applies a configuration option to the Sampler.
type Option func(*Sampler)

// WithSeed makes every draw reproducible.
func WithSeed(seed int64) Option {
	return func(s *Sampler) {
		s.rnd = rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible sampling
	}
}

// WithRand uses an existing source. The sampler serializes access to it.
func WithRand(r *rand.Rand) Option {
	return func(s *Sampler) {
		if r != nil {
			s.rnd = r
		}
	}
}

// WithScenarioWeights adds or replaces scenario occupation weights.
// Non-positive weights are ignored.
func WithScenarioWeights(weights map[string]map[string]float64) Option {
	return func(s *Sampler) {
		for scenario, occ := range weights {
			names := make([]string, 0, len(occ))
			for name := range occ {
				names = append(names, name)
			}
			sort.Strings(names)

			table := make([]weighted, 0, len(names))
			for _, name := range names {
				if w := occ[name]; w > 0 {
					table = append(table, weighted{name: name, weight: w})
				}
			}
			if len(table) > 0 {
				s.scenarios[scenario] = table
			}
		}
	}
}
