package model

import "fmt"

// Terminator names who or what ended a conversation.
type Terminator string

const (
	TerminatorInitiator Terminator = "initiator"
	TerminatorResponder Terminator = "responder"
	TerminatorNatural   Terminator = "natural"
	TerminatorHangup    Terminator = "hangup_signal"
)

// Valid reports whether t is a known terminator.
func (t Terminator) Valid() bool {
	switch t {
	case TerminatorInitiator, TerminatorResponder, TerminatorNatural, TerminatorHangup:
		return true
	}
	return false
}

// Speaker maps a party terminator to its speaker.
func (t Terminator) Speaker() (Speaker, bool) {
	switch t {
	case TerminatorInitiator:
		return Initiator, true
	case TerminatorResponder:
		return Responder, true
	}
	return "", false
}

// Verdict is one arbitration decision.
type Verdict struct {
	ShouldTerminate bool       `json:"should_terminate"`
	Terminator      Terminator `json:"terminator"`
	Reason          string     `json:"reason"`
}

// Validate checks the verdict is complete.
func (v Verdict) Validate() error {
	if !v.Terminator.Valid() {
		return fmt.Errorf("unknown terminator %q", v.Terminator)
	}
	if v.Reason == "" {
		return fmt.Errorf("empty reason")
	}
	return nil
}

// Continue is the verdict that keeps a conversation going.
func Continue(reason string) Verdict {
	return Verdict{ShouldTerminate: false, Terminator: TerminatorNatural, Reason: reason}
}

// Result is the outcome of one conversation.
type Result struct {
	Transcript        Transcript
	Terminator        Terminator
	TerminationReason string
	ReachedTurnLimit  bool
	// EndedBy is set when a party hung up with a control token.
	EndedBy       Speaker
	FallbackTurns int
}
