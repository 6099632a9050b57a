package service

import (
	"fmt"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/sampling"
)

// Sampling modes.
const (
	ModeGrid       = "grid"
	ModeStratified = "stratified"
)

// TurnRange bounds the per-task turn cap.
type TurnRange struct {
	Min, Max int
}

// Default turn ranges per kind.
var defaultTurns = map[model.Kind]TurnRange{
	model.KindFraud:  {Min: 20, Max: 30},
	model.KindNormal: {Min: 15, Max: 25},
}

// Planner turns requested counts into tasks.
type Planner struct {
	sampler *sampling.Sampler
	mode    string
	turns   map[model.Kind]TurnRange
}

// NewPlanner creates a planner. Unknown modes fall back to stratified.
func NewPlanner(s *sampling.Sampler, mode string, turns map[model.Kind]TurnRange) *Planner {
	p := &Planner{sampler: s, mode: mode, turns: map[model.Kind]TurnRange{}}
	for k, r := range defaultTurns {
		p.turns[k] = r
	}
	for k, r := range turns {
		if r.Min > 0 && r.Max >= r.Min {
			p.turns[k] = r
		}
	}
	return p
}

// Plan returns count tasks of kind with IDs tts_<kind>_00001.. in plan order,
// then shuffled.
func (p *Planner) Plan(kind model.Kind, count int) []model.Task {
	if count <= 0 {
		return nil
	}
	var profiles []model.Profile
	if p.mode == ModeGrid {
		profiles = p.grid(kind, count)
	} else {
		profiles = p.stratified(kind, count)
	}

	tasks := make([]model.Task, len(profiles))
	for i, prof := range profiles {
		tasks[i] = model.Task{
			ID:       fmt.Sprintf("tts_%s_%05d", kind, i+1),
			Kind:     kind,
			Profile:  prof,
			MaxTurns: p.maxTurns(kind),
		}
	}
	p.sampler.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })
	return tasks
}

// stratified spreads count evenly over the kind's scenarios. Fraud profiles
// are drawn occupation first; benign ones age bracket first.
func (p *Planner) stratified(kind model.Kind, count int) []model.Profile {
	scenarios := sampling.Scenarios(kind)
	counts := spread(count, len(scenarios))

	if kind == model.KindFraud {
		byName := make(map[string]int, len(scenarios))
		for i, name := range scenarios {
			byName[name] = counts[i]
		}
		return p.sampler.BatchSample(byName)
	}

	out := make([]model.Profile, 0, count)
	for i, name := range scenarios {
		for j := 0; j < counts[i]; j++ {
			out = append(out, p.sampler.SampleByAge(name))
		}
	}
	return out
}

// grid covers every bracket × awareness × scenario combination, giving the
// remainder to the first combinations.
func (p *Planner) grid(kind model.Kind, count int) []model.Profile {
	type combo struct {
		bracket   string
		awareness model.Awareness
		scenario  string
	}
	var combos []combo
	for _, b := range sampling.Brackets() {
		for _, a := range model.Awarenesses {
			for _, sc := range sampling.Scenarios(kind) {
				combos = append(combos, combo{b.Name, a, sc})
			}
		}
	}

	counts := spread(count, len(combos))
	out := make([]model.Profile, 0, count)
	for i, c := range combos {
		for j := 0; j < counts[i]; j++ {
			out = append(out, p.sampler.Profile(c.scenario, c.bracket, c.awareness))
		}
	}
	return out
}

func (p *Planner) maxTurns(kind model.Kind) int {
	r := p.turns[kind]
	return r.Min + p.sampler.Intn(r.Max-r.Min+1)
}

// spread splits total into n parts differing by at most one, larger first.
func spread(total, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	base, rem := total/n, total%n
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}
