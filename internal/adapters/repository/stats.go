package repository

import (
	"fmt"
	"unicode/utf8"

	"github.com/okian/callgen/internal/domain/model"
)

const turnBucketWidth = 5

// Stats summarizes a set of records.
type Stats struct {
	Total       int            `json:"total"`
	Labels      map[string]int `json:"labels"`
	Scenarios   map[string]int `json:"scenarios"`
	AgeRanges   map[string]int `json:"age_ranges"`
	Occupations map[string]int `json:"occupations"`
	Awareness   map[string]int `json:"awareness"`
	Terminators map[string]int `json:"terminators"`
	TurnBuckets map[string]int `json:"turn_buckets"`
	TurnLimit   int            `json:"reached_turn_limit"`
	AvgTurns    float64        `json:"avg_turns"`
	AvgLength   float64        `json:"avg_length"`
}

func newStats() Stats {
	return Stats{
		Labels:      map[string]int{},
		Scenarios:   map[string]int{},
		AgeRanges:   map[string]int{},
		Occupations: map[string]int{},
		Awareness:   map[string]int{},
		Terminators: map[string]int{},
		TurnBuckets: map[string]int{},
	}
}

// Summarize computes distributions over records. Length is counted in runes.
func Summarize(records []model.Record) Stats {
	st := newStats()
	var turns, length int
	for i := range records {
		st.add(&records[i])
		turns += records[i].Turns
		length += textLength(&records[i])
	}
	if st.Total > 0 {
		st.AvgTurns = float64(turns) / float64(st.Total)
		st.AvgLength = float64(length) / float64(st.Total)
	}
	return st
}

func (st *Stats) add(r *model.Record) {
	st.Total++
	st.Labels[orUnknown(string(r.Label))]++
	st.Scenarios[orUnknown(r.Scenario)]++
	st.AgeRanges[orUnknown(r.AgeRange)]++
	st.Occupations[orUnknown(r.Occupation)]++
	st.Awareness[orUnknown(string(r.Awareness))]++
	st.Terminators[orUnknown(r.Terminator)]++
	st.TurnBuckets[turnBucket(r.Turns)]++
	if r.ReachedTurnLimit {
		st.TurnLimit++
	}
}

func turnBucket(turns int) string {
	lo := (turns / turnBucketWidth) * turnBucketWidth
	return fmt.Sprintf("%d-%d", lo, lo+turnBucketWidth-1)
}

func textLength(r *model.Record) int {
	n := 0
	for _, s := range r.Initiator {
		n += utf8.RuneCountInString(s)
	}
	for _, s := range r.Responder {
		n += utf8.RuneCountInString(s)
	}
	return n
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
