// Package sampling draws demographically consistent responder profiles:
// occupation from the scenario, age bracket from the occupation, age within
// the bracket, and awareness from both.
package sampling

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/okian/callgen/internal/domain/model"
)

var uniformAwareness = [3]float64{0.33, 0.34, 0.33}

// Sampler is safe for concurrent use. Given the same seed and call sequence
// it produces the same profiles.
type Sampler struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	scenarios map[string][]weighted
}

// New creates a sampler. Without WithSeed or WithRand it seeds from the clock.
func New(opts ...Option) *Sampler {
	s := &Sampler{scenarios: make(map[string][]weighted, len(fraudScenarios))}
	for _, t := range fraudScenarios {
		s.scenarios[t.name] = t.weights
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // sampling only
	}
	return s
}

// HasWeights reports whether scenario carries occupation weights.
func (s *Sampler) HasWeights(scenario string) bool {
	_, ok := s.scenarios[scenario]
	return ok
}

// Sample draws one profile for scenario. It never fails: unknown scenarios
// draw occupations uniformly.
func (s *Sampler) Sample(scenario string) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample(scenario)
}

func (s *Sampler) sample(scenario string) model.Profile {
	occupation := s.occupation(scenario)
	bracket := s.bracketFor(occupation)
	return model.Profile{
		Scenario:   scenario,
		Age:        s.ageIn(bracket),
		AgeRange:   bracket,
		Occupation: occupation,
		Awareness:  s.awareness(bracket, occupation),
	}
}

// SampleByAge draws bracket first and occupation from the bracket only. Used
// for benign calls where the scenario says nothing about the responder.
func (s *Sampler) SampleByAge(scenario string) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	weights := make([]float64, len(brackets))
	for i, b := range brackets {
		weights[i] = b.Weight
	}
	b := brackets[s.choose(weights)]
	occupation := b.Occupations[s.rnd.Intn(len(b.Occupations))]
	return model.Profile{
		Scenario:   scenario,
		Age:        s.ageIn(b.Name),
		AgeRange:   b.Name,
		Occupation: occupation,
		Awareness:  s.awareness(b.Name, occupation),
	}
}

// BatchSample draws counts[scenario] profiles per scenario and shuffles the
// combined list.
func (s *Sampler) BatchSample(counts map[string]int) []model.Profile {
	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		if n > 0 {
			names = append(names, name)
			total += n
		}
	}
	sort.Strings(names)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Profile, 0, total)
	for _, name := range names {
		for i := 0; i < counts[name]; i++ {
			out = append(out, s.sample(name))
		}
	}
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Profile builds a profile for a fixed bracket and awareness, used by grid
// planning. The occupation follows OccupationFor.
func (s *Sampler) Profile(scenario, bracket string, awareness model.Awareness) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Profile{
		Scenario:   scenario,
		Age:        s.ageIn(bracket),
		AgeRange:   bracket,
		Occupation: s.occupationFor(scenario, bracket),
		Awareness:  awareness,
	}
}

// OccupationFor draws P(occupation | scenario, bracket): the scenario weights
// restricted to the bracket's occupations, or uniform over the bracket's
// occupations when they do not intersect.
func (s *Sampler) OccupationFor(scenario, bracket string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupationFor(scenario, bracket)
}

func (s *Sampler) occupationFor(scenario, bracket string) string {
	b, ok := bracketByName(bracket)
	if !ok {
		return s.occupation(scenario)
	}
	var names []string
	var weights []float64
	for _, w := range s.scenarios[scenario] {
		if contains(b.Occupations, w.name) {
			names = append(names, w.name)
			weights = append(weights, w.weight)
		}
	}
	if len(names) == 0 {
		return b.Occupations[s.rnd.Intn(len(b.Occupations))]
	}
	return names[s.choose(weights)]
}

// AwarenessFor draws an awareness level for the pair.
func (s *Sampler) AwarenessFor(bracket, occupation string) model.Awareness {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awareness(bracket, occupation)
}

// AgeIn draws an age uniformly within the bracket (18-70 when unknown).
func (s *Sampler) AgeIn(bracket string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ageIn(bracket)
}

// Intn returns a value in [0,n) from the sampler's source.
func (s *Sampler) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// Shuffle permutes n elements with the sampler's source.
func (s *Sampler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(n, swap)
}

func (s *Sampler) occupation(scenario string) string {
	table, ok := s.scenarios[scenario]
	if !ok {
		return occupations[s.rnd.Intn(len(occupations))]
	}
	weights := make([]float64, len(table))
	for i, w := range table {
		weights[i] = w.weight
	}
	return table[s.choose(weights)].name
}

func (s *Sampler) bracketFor(occupation string) string {
	var names []string
	var weights []float64
	for _, b := range brackets {
		if contains(b.Occupations, occupation) {
			names = append(names, b.Name)
			weights = append(weights, b.Weight)
		}
	}
	if len(names) > 0 {
		return names[s.choose(weights)]
	}
	fb := fallbackFor(occupation)
	return fb[s.rnd.Intn(len(fb))]
}

func (s *Sampler) ageIn(bracket string) int {
	lo, hi, _ := BracketBounds(bracket)
	return lo + s.rnd.Intn(hi-lo+1)
}

func (s *Sampler) awareness(bracket, occupation string) model.Awareness {
	p := AwarenessDistribution(bracket, occupation)
	return model.Awarenesses[s.choose(p[:])]
}

// choose returns an index with probability proportional to its weight.
func (s *Sampler) choose(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return s.rnd.Intn(len(weights))
	}
	r := s.rnd.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// AwarenessDistribution returns P(low, medium, high) for the pair: the
// bracket's base distribution shifted by occupation and renormalized.
func AwarenessDistribution(bracket, occupation string) [3]float64 {
	p := uniformAwareness
	if b, ok := bracketByName(bracket); ok {
		p = b.Awareness
	}
	low, mid, high := p[0], p[1], p[2]

	switch {
	case highAwarenessJobs[occupation]:
		high = min(high*1.5, 0.8)
		low = max(low*0.7, 0.1)
	case lowAwarenessJobs[occupation]:
		low = min(low*1.3, 0.8)
		high = max(high*0.6, 0.05)
	}

	total := low + mid + high
	return [3]float64{low / total, mid / total, high / total}
}
