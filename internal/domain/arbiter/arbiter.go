// Package arbiter decides when a simulated call should end. It asks a
// text-generation service for a JSON verdict and falls back to a keyword and
// repetition heuristic when the reply cannot be parsed.
package arbiter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
	"github.com/okian/callgen/pkg/metrics"
	"github.com/okian/callgen/pkg/retry"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 5 * time.Second

	defaultSystem = `You monitor a simulated phone call and decide whether it should end.
Answer with JSON only: {"should_terminate": true|false, "terminator": "caller"|"receiver"|"natural", "reason": "<short reason>"}`
)

// ErrEmptyReply is returned by an attempt that produced no text.
var ErrEmptyReply = errors.New("empty arbiter reply")

// Completer is the request layer the arbiter talks to.
type Completer interface {
	Complete(ctx context.Context, p model.Prompt) (string, error)
}

// Arbiter evaluates transcripts. Safe for concurrent use.
type Arbiter struct {
	completer  Completer
	system     string
	labels     map[model.Speaker]string
	attempts   int
	delay      time.Duration
	gen        model.Generation
	stagnation StagnationDetector
	logger     logger.Logger
}

// New creates an arbiter.
func New(c Completer, opts ...Option) *Arbiter {
	a := &Arbiter{
		completer: c,
		system:    defaultSystem,
		labels: map[model.Speaker]string{
			model.Initiator: "Caller",
			model.Responder: "Receiver",
		},
		attempts:   defaultAttempts,
		delay:      defaultRetryDelay,
		gen:        model.Generation{Temperature: 0.3, MaxTokens: 500},
		stagnation: StagnationDetector{Window: defaultStagnationWindow, Similarity: defaultStagnationSimilarity},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("arbiter")
	}
	return a
}

// Evaluate returns a verdict for tr. It never fails: when the service stays
// unavailable the verdict ends the call with a system error reason.
func (a *Arbiter) Evaluate(ctx context.Context, tr model.Transcript) model.Verdict {
	prompt := model.Prompt{
		System:     a.system,
		Next:       "Conversation so far:\n" + tr.Render(a.labels) + "\n\nGive your verdict now.",
		Generation: &a.gen,
	}

	policy := retry.Policy{
		MaxAttempts: a.attempts,
		Backoff:     retry.Constant(a.delay),
		OnRetry: func(attempt int, err error, _ time.Duration) {
			a.logger.Warn(ctx, "arbitration attempt failed", logger.Int("attempt", attempt+1), logger.Error(err))
		},
	}
	text, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		out, err := a.completer.Complete(ctx, prompt)
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrEmptyReply
		}
		return out, err
	})
	if err != nil {
		a.logger.Error(ctx, "arbitration failed, ending call", logger.Int("turns", tr.Len()), logger.Error(err))
		metrics.RecordArbiterVerdict("system_error", true)
		return model.Verdict{
			ShouldTerminate: true,
			Terminator:      model.TerminatorNatural,
			Reason:          truncate("system error: "+err.Error(), maxReasonRunes),
		}
	}

	v, source, err := FirstOf(text, tr,
		Parser{Name: "structured", Parse: ParseStructured},
		Parser{Name: "heuristic", Parse: a.heuristic},
	)
	if err != nil {
		// unreachable while the heuristic parser is last
		v, source = model.Continue("unparsable arbiter reply"), "none"
	}
	metrics.RecordArbiterVerdict(source, v.ShouldTerminate)
	a.logger.Debug(ctx, "verdict",
		logger.String("source", source),
		logger.Bool("terminate", v.ShouldTerminate),
		logger.String("terminator", string(v.Terminator)),
		logger.String("reason", v.Reason))
	return v
}

// ParseHeuristic reads a free-text reply. It always yields a complete verdict.
func (a *Arbiter) ParseHeuristic(text string, tr model.Transcript) model.Verdict {
	v, _ := a.heuristic(text, tr)
	return v
}

func (a *Arbiter) heuristic(text string, tr model.Transcript) (model.Verdict, error) {
	clean := strings.Join(strings.Fields(text), " ")
	lower := strings.ToLower(clean)
	signal := model.ExtractSignal(text)

	terminate := false
	switch {
	case signal != model.SignalNone:
		terminate = true
	case containsAny(lower, negations):
	case containsAny(lower, terminations):
		terminate = true
	}

	reason := truncate(clean, maxReasonRunes)
	if a.stagnation.Stagnant(tr) {
		if !terminate {
			reason = "conversation is stagnating"
		}
		terminate = true
	}
	if reason == "" {
		reason = "no usable arbiter reply"
	}

	if !terminate {
		return model.Continue(reason), nil
	}
	return model.Verdict{ShouldTerminate: true, Terminator: roleFromText(lower), Reason: reason}, nil
}
