// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlternation is returned when a turn would break strict speaker alternation.
var ErrAlternation = errors.New("turn breaks speaker alternation")

// Speaker identifies one of the two parties on a call.
type Speaker string

const (
	Initiator Speaker = "initiator" // places the call
	Responder Speaker = "responder" // receives the call
)

// Other returns the counterpart of s.
func (s Speaker) Other() Speaker {
	if s == Initiator {
		return Responder
	}
	return Initiator
}

// Valid reports whether s is one of the two known speakers.
func (s Speaker) Valid() bool { return s == Initiator || s == Responder }

// Turn is one utterance.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Content string  `json:"content"`
}

// Transcript is an ordered, strictly alternating sequence of turns that always
// starts with the initiator. The zero value is an empty transcript.
type Transcript struct {
	turns []Turn
}

// NewTranscript builds a transcript from turns, validating alternation.
func NewTranscript(turns ...Turn) (Transcript, error) {
	var t Transcript
	for _, turn := range turns {
		if err := t.Append(turn); err != nil {
			return Transcript{}, err
		}
	}
	return t, nil
}

// Append adds a turn. The first turn must come from the initiator and each
// following turn from the counterpart of the previous one.
func (t *Transcript) Append(turn Turn) error {
	if want := t.NextSpeaker(); turn.Speaker != want {
		return fmt.Errorf("%w: got %q, want %q at turn %d", ErrAlternation, turn.Speaker, want, len(t.turns))
	}
	t.turns = append(t.turns, turn)
	return nil
}

// NextSpeaker returns who must speak next.
func (t Transcript) NextSpeaker() Speaker {
	if len(t.turns) == 0 {
		return Initiator
	}
	return t.turns[len(t.turns)-1].Speaker.Other()
}

// Len returns the number of turns.
func (t Transcript) Len() int { return len(t.turns) }

// Last returns the most recent turn.
func (t Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// Turns returns a copy of the turns.
func (t Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// BySpeaker returns the utterances of one party in order.
func (t Transcript) BySpeaker(s Speaker) []string {
	out := make([]string, 0, len(t.turns)/2+1)
	for _, turn := range t.turns {
		if turn.Speaker == s {
			out = append(out, turn.Content)
		}
	}
	return out
}

// Render formats the transcript as one "label: content" line per turn.
// Speakers missing from labels are printed by their own name.
func (t Transcript) Render(labels map[Speaker]string) string {
	var b strings.Builder
	for i, turn := range t.turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		label, ok := labels[turn.Speaker]
		if !ok {
			label = string(turn.Speaker)
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(turn.Content)
	}
	return b.String()
}
