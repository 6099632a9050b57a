package sampling

import (
	"fmt"

	"github.com/okian/callgen/internal/domain/model"
)

const (
	retiredMinAge = 50
	studentMaxAge = 30
)

// Quality is a diagnostic over a batch of profiles.
type Quality struct {
	Realistic int
	Total     int
	// Score is Realistic/Total, 0 for an empty batch.
	Score  float64
	Issues []string
}

// Validate checks hard realism rules: retirees are at least 50, students at
// most 30, occupations fit their bracket and ages their bounds, and weighted
// scenarios only carry their own occupations.
func (s *Sampler) Validate(profiles []model.Profile) Quality {
	q := Quality{Total: len(profiles)}
	for i, p := range profiles {
		issues := s.check(p)
		if len(issues) == 0 {
			q.Realistic++
			continue
		}
		for _, issue := range issues {
			q.Issues = append(q.Issues, fmt.Sprintf("profile %d: %s", i, issue))
		}
	}
	if q.Total > 0 {
		q.Score = float64(q.Realistic) / float64(q.Total)
	}
	return q
}

func (s *Sampler) check(p model.Profile) []string {
	var issues []string
	if p.Occupation == Student && p.Age > studentMaxAge {
		issues = append(issues, fmt.Sprintf("student aged %d", p.Age))
	}
	if p.Occupation == Retired && p.Age < retiredMinAge {
		issues = append(issues, fmt.Sprintf("retired aged %d", p.Age))
	}
	if !ValidOccupation(p.AgeRange, p.Occupation) {
		issues = append(issues, fmt.Sprintf("%s unexpected in %s", p.Occupation, p.AgeRange))
	}
	if lo, hi, ok := BracketBounds(p.AgeRange); ok && (p.Age < lo || p.Age > hi) {
		issues = append(issues, fmt.Sprintf("age %d outside %s", p.Age, p.AgeRange))
	}
	if table, ok := s.scenarios[p.Scenario]; ok {
		found := false
		for _, w := range table {
			if w.name == p.Occupation {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, fmt.Sprintf("%s not expected for %s", p.Occupation, p.Scenario))
		}
	}
	return issues
}

// Distribution counts profiles along each dimension.
type Distribution struct {
	Total              int
	Scenario           map[string]int
	Occupation         map[string]int
	AgeRange           map[string]int
	Awareness          map[string]int
	ScenarioOccupation map[string]map[string]int
}

// Analyze tallies a batch.
func Analyze(profiles []model.Profile) Distribution {
	d := Distribution{
		Total:              len(profiles),
		Scenario:           map[string]int{},
		Occupation:         map[string]int{},
		AgeRange:           map[string]int{},
		Awareness:          map[string]int{},
		ScenarioOccupation: map[string]map[string]int{},
	}
	for _, p := range profiles {
		d.Scenario[p.Scenario]++
		d.Occupation[p.Occupation]++
		d.AgeRange[p.AgeRange]++
		d.Awareness[string(p.Awareness)]++
		if d.ScenarioOccupation[p.Scenario] == nil {
			d.ScenarioOccupation[p.Scenario] = map[string]int{}
		}
		d.ScenarioOccupation[p.Scenario][p.Occupation]++
	}
	return d
}

// Percent returns count as a percentage of Total.
func (d Distribution) Percent(count int) float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(count) * 100 / float64(d.Total)
}
