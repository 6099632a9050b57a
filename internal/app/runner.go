package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/callgen/internal/domain/dialogue"
	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/persona"
)

// ErrNoOutput marks a conversation in which every turn was a fallback line.
var ErrNoOutput = errors.New("conversation has no generated turns")

// Completer is the request layer shared by all sessions.
type Completer interface {
	Complete(ctx context.Context, p model.Prompt) (string, error)
}

// conversationRunner runs one dialogue session per task.
type conversationRunner struct {
	completer Completer
	evaluator dialogue.Evaluator
	personas  *persona.Builder
	opts      []dialogue.Option
}

func (r *conversationRunner) Run(ctx context.Context, task model.Task) (model.FullDialogue, error) {
	initiator, err := r.personas.Initiator(task)
	if err != nil {
		return model.FullDialogue{}, fmt.Errorf("initiator persona: %w", err)
	}
	responder, err := r.personas.Responder(task)
	if err != nil {
		return model.FullDialogue{}, fmt.Errorf("responder persona: %w", err)
	}

	opts := append([]dialogue.Option{
		dialogue.WithMaxTurns(task.MaxTurns),
		dialogue.WithID(task.ID),
	}, r.opts...)
	res := dialogue.New(r.completer, r.evaluator, initiator, responder, opts...).Run(ctx)

	// A cancelled run is not persisted so a resumed run regenerates it.
	if err := ctx.Err(); err != nil {
		return model.FullDialogue{}, err
	}
	if res.Transcript.Len() == 0 || res.FallbackTurns >= res.Transcript.Len() {
		return model.FullDialogue{}, fmt.Errorf("%w: %s", ErrNoOutput, res.TerminationReason)
	}
	return model.FullDialogue{
		Task:   task,
		Turns:  res.Transcript.Turns(),
		Record: model.NewRecord(task, res),
	}, nil
}
