package model

import "strings"

// Literal control tokens an agent may embed in its utterance.
const (
	EndCallToken   = "##ENDCALL_SIGNAL##"
	TerminateToken = "##TERMINATE_SIGNAL##"
)

// Signal is the control intent carried by an utterance.
type Signal int

const (
	SignalNone Signal = iota
	SignalEndCall
	SignalTerminate
)

func (s Signal) String() string {
	switch s {
	case SignalEndCall:
		return "end_call"
	case SignalTerminate:
		return "terminate"
	default:
		return "none"
	}
}

// ExtractSignal reports the control token embedded in text. End-call wins when
// both are present.
func ExtractSignal(text string) Signal {
	switch {
	case strings.Contains(text, EndCallToken):
		return SignalEndCall
	case strings.Contains(text, TerminateToken):
		return SignalTerminate
	default:
		return SignalNone
	}
}

// StripSignals removes control tokens and tidies leftover whitespace.
func StripSignals(text string) string {
	text = strings.ReplaceAll(text, EndCallToken, "")
	text = strings.ReplaceAll(text, TerminateToken, "")
	return strings.Join(strings.Fields(text), " ")
}
