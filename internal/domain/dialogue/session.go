// Package dialogue runs one simulated call as an explicit state machine:
// alternating initiator and responder turns, periodic arbitration, an optional
// closing exchange and a hard turn cap.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
	"github.com/okian/callgen/pkg/metrics"
)

const (
	defaultMaxTurns = 20
	defaultInterval = 2
	defaultFrom     = 4
	defaultSeed     = "Begin the call."
)

// State is a step of the conversation state machine.
type State int

const (
	StateInit State = iota
	StateInitiatorTurn
	StateResponderTurn
	StateArbitration
	StateClosing
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateInitiatorTurn:
		return "initiator_turn"
	case StateResponderTurn:
		return "responder_turn"
	case StateArbitration:
		return "arbitration"
	case StateClosing:
		return "closing"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Completer produces the next utterance for a prompt.
type Completer interface {
	Complete(ctx context.Context, p model.Prompt) (string, error)
}

// Evaluator decides whether a call should end.
type Evaluator interface {
	Evaluate(ctx context.Context, tr model.Transcript) model.Verdict
}

// Session owns one conversation. It is not safe for concurrent use; run many
// sessions in parallel instead.
type Session struct {
	completer Completer
	evaluator Evaluator
	personas  map[model.Speaker]model.Persona

	maxTurns int
	interval int
	from     int
	seed     string
	id       string
	logger   logger.Logger

	state   State
	tr      model.Transcript
	closing []model.Speaker
	result  model.Result
	started time.Time
}

// New creates a session between two personas.
func New(c Completer, e Evaluator, initiator, responder model.Persona, opts ...Option) *Session {
	s := &Session{
		completer: c,
		evaluator: e,
		personas: map[model.Speaker]model.Persona{
			model.Initiator: initiator,
			model.Responder: responder,
		},
		maxTurns: defaultMaxTurns,
		interval: defaultInterval,
		from:     defaultFrom,
		seed:     defaultSeed,
		state:    StateInit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("dialogue")
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Transcript returns the turns so far.
func (s *Session) Transcript() model.Transcript { return s.tr }

// Run steps the session until it ends and returns the outcome.
func (s *Session) Run(ctx context.Context) model.Result {
	for s.Step(ctx) {
	}
	return s.Result()
}

// Result returns the outcome. Meaningful once the state is StateEnded.
func (s *Session) Result() model.Result {
	r := s.result
	r.Transcript = s.tr
	return r
}

// Step performs one transition and reports whether the session is still running.
func (s *Session) Step(ctx context.Context) bool {
	if s.state == StateEnded {
		return false
	}
	// Closing only finishes the outcome already decided.
	if ctx.Err() != nil && s.state != StateClosing {
		s.end(ctx, model.TerminatorNatural, "cancelled")
		return false
	}

	switch s.state {
	case StateInit:
		s.started = time.Now()
		s.state = StateInitiatorTurn
	case StateInitiatorTurn:
		s.turn(ctx, model.Initiator)
	case StateResponderTurn:
		s.turn(ctx, model.Responder)
	case StateArbitration:
		s.arbitrate(ctx)
	case StateClosing:
		s.close(ctx)
	}
	return s.state != StateEnded
}

func (s *Session) turn(ctx context.Context, speaker model.Speaker) {
	text, err := s.speak(ctx, speaker, false)
	if err != nil {
		s.end(ctx, model.TerminatorNatural, abortReason(ctx, err))
		return
	}
	if s.hungUp(speaker, text) {
		return
	}
	if s.tr.Len() >= s.maxTurns {
		s.result.ReachedTurnLimit = true
		s.end(ctx, model.TerminatorNatural, fmt.Sprintf("turn limit of %d reached", s.maxTurns))
		return
	}
	if n := s.tr.Len(); n >= s.from && n%s.interval == 0 {
		s.state = StateArbitration
		return
	}
	s.state = turnState(s.tr.NextSpeaker())
}

// hungUp checks a fresh turn for a control token. Any token outside a closing
// turn is a hang-up: the call goes to closing with nothing left to say.
func (s *Session) hungUp(speaker model.Speaker, text string) bool {
	sig := model.ExtractSignal(text)
	if sig == model.SignalNone {
		return false
	}
	s.result.Terminator = model.TerminatorHangup
	s.result.EndedBy = speaker
	s.result.TerminationReason = fmt.Sprintf("%s hung up (%s signal)", speaker, sig)
	s.closing = nil
	s.state = StateClosing
	return true
}

func (s *Session) arbitrate(ctx context.Context) {
	v := s.evaluator.Evaluate(ctx, s.tr)
	if !v.ShouldTerminate {
		s.state = turnState(s.tr.NextSpeaker())
		return
	}

	s.result.Terminator = v.Terminator
	s.result.TerminationReason = v.Reason
	s.closing = nil

	if closer, ok := v.Terminator.Speaker(); ok {
		plan := []model.Speaker{closer}
		if s.tr.NextSpeaker() != closer {
			plan = []model.Speaker{closer.Other(), closer}
		}
		if s.tr.Len()+len(plan) <= s.maxTurns {
			s.closing = plan
		}
	}
	s.state = StateClosing
}

func (s *Session) close(ctx context.Context) {
	if len(s.closing) == 0 {
		s.end(ctx, s.result.Terminator, s.result.TerminationReason)
		return
	}

	speaker := s.closing[0]
	s.closing = s.closing[1:]
	final := len(s.closing) == 0

	text, err := s.speak(ctx, speaker, final)
	if err != nil {
		s.end(ctx, s.result.Terminator, s.result.TerminationReason)
		return
	}
	// A bridge turn may still hang up, which overrides the verdict.
	if !final && model.ExtractSignal(text) == model.SignalEndCall {
		s.hungUp(speaker, text)
	}
}

// speak asks the completer for speaker's next turn and appends it. Generation
// failures use the persona's fallback line; only cancellation is returned.
func (s *Session) speak(ctx context.Context, speaker model.Speaker, closing bool) (string, error) {
	text, err := s.completer.Complete(ctx, s.prompt(speaker, closing))
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil || strings.TrimSpace(text) == "" {
		s.result.FallbackTurns++
		metrics.RecordFallbackTurn(string(speaker))
		s.logger.Warn(ctx, "using fallback utterance",
			logger.String("id", s.id),
			logger.String("speaker", string(speaker)),
			logger.Int("turn", s.tr.Len()+1),
			logger.Error(err))
		text = s.personas[speaker].Fallback
	}
	if err := s.tr.Append(model.Turn{Speaker: speaker, Content: text}); err != nil {
		return "", err
	}
	return text, nil
}

func abortReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	return "aborted: " + err.Error()
}

// prompt renders the transcript from speaker's side: its own turns are
// assistant messages, the counterpart's are user messages, and the latest
// counterpart turn is the message to answer.
func (s *Session) prompt(speaker model.Speaker, closing bool) model.Prompt {
	p := s.personas[speaker]
	system := p.System
	if closing && p.Closing != "" {
		system += "\n\n" + p.Closing
	}

	turns := s.tr.Turns()
	next := s.seed
	if n := len(turns); n > 0 && turns[n-1].Speaker != speaker {
		next = turns[n-1].Content
		turns = turns[:n-1]
	}

	history := make([]model.ChatMessage, 0, len(turns))
	for _, t := range turns {
		role := model.RoleUser
		if t.Speaker == speaker {
			role = model.RoleAssistant
		}
		history = append(history, model.ChatMessage{Role: role, Content: t.Content})
	}
	return model.Prompt{System: system, History: history, Next: next}
}

func (s *Session) end(ctx context.Context, t model.Terminator, reason string) {
	if t == "" {
		t = model.TerminatorNatural
	}
	s.result.Terminator = t
	s.result.TerminationReason = reason
	s.closing = nil
	s.state = StateEnded

	metrics.RecordConversation(string(t), s.tr.Len(), time.Since(s.started).Seconds())
	s.logger.Info(ctx, "conversation ended",
		logger.String("id", s.id),
		logger.Int("turns", s.tr.Len()),
		logger.String("terminator", string(t)),
		logger.String("reason", reason),
		logger.Bool("turn_limit", s.result.ReachedTurnLimit),
		logger.Int("fallback_turns", s.result.FallbackTurns))
}

func turnState(sp model.Speaker) State {
	if sp == model.Initiator {
		return StateInitiatorTurn
	}
	return StateResponderTurn
}
