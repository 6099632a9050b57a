package model

// Awareness is the responder's fraud awareness level.
type Awareness string

const (
	AwarenessLow    Awareness = "low"
	AwarenessMedium Awareness = "medium"
	AwarenessHigh   Awareness = "high"
)

// Awarenesses lists levels in fixed order.
var Awarenesses = []Awareness{AwarenessLow, AwarenessMedium, AwarenessHigh}

// Kind labels a conversation as fraud or benign.
type Kind string

const (
	KindFraud  Kind = "fraud"
	KindNormal Kind = "normal"
)

// FraudFlag is 1 for fraud and 0 otherwise.
func (k Kind) FraudFlag() int {
	if k == KindFraud {
		return 1
	}
	return 0
}

// Profile describes the responder and the scenario of a call.
type Profile struct {
	Scenario   string    `json:"scenario"`
	Age        int       `json:"age"`
	AgeRange   string    `json:"age_range"`
	Occupation string    `json:"occupation"`
	Awareness  Awareness `json:"awareness"`
}

// Task is one unit of batch work.
type Task struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Profile         // embedded for flat JSON
	MaxTurns int    `json:"max_turns"`
}

// Record is the persisted summary of one conversation.
type Record struct {
	ID                string    `json:"id"`
	Label             Kind      `json:"label"`
	IsFraud           int       `json:"is_fraud"`
	Scenario          string    `json:"scenario"`
	Initiator         []string  `json:"initiator"`
	Responder         []string  `json:"responder"`
	Age               int       `json:"age"`
	AgeRange          string    `json:"age_range"`
	Occupation        string    `json:"occupation"`
	Awareness         Awareness `json:"awareness"`
	TerminationReason string    `json:"termination_reason"`
	Terminator        string    `json:"terminator"`
	EndedBy           string    `json:"ended_by,omitempty"`
	ReachedTurnLimit  bool      `json:"reached_turn_limit"`
	Turns             int       `json:"turns"`
}

// NewRecord summarizes a result. Control tokens are stripped from utterances.
func NewRecord(task Task, res Result) Record {
	strip := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = StripSignals(s)
		}
		return out
	}
	return Record{
		ID:                task.ID,
		Label:             task.Kind,
		IsFraud:           task.Kind.FraudFlag(),
		Scenario:          task.Scenario,
		Initiator:         strip(res.Transcript.BySpeaker(Initiator)),
		Responder:         strip(res.Transcript.BySpeaker(Responder)),
		Age:               task.Age,
		AgeRange:          task.AgeRange,
		Occupation:        task.Occupation,
		Awareness:         task.Awareness,
		TerminationReason: res.TerminationReason,
		Terminator:        string(res.Terminator),
		EndedBy:           string(res.EndedBy),
		ReachedTurnLimit:  res.ReachedTurnLimit,
		Turns:             res.Transcript.Len(),
	}
}

// FullDialogue is the complete interleaved transcript of one conversation.
type FullDialogue struct {
	Task   Task   `json:"task"`
	Turns  []Turn `json:"turns"`
	Record Record `json:"summary"`
}

// Failure records a task that could not produce a conversation.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}
