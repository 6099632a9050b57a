package dialogue_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/okian/callgen/internal/domain/dialogue"
	"github.com/okian/callgen/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	caller   = model.Persona{Speaker: model.Initiator, System: "CALLER", Closing: "WRAP UP CALLER", Fallback: "caller fallback"}
	receiver = model.Persona{Speaker: model.Responder, System: "RECEIVER", Closing: "WRAP UP RECEIVER", Fallback: "receiver fallback"}
)

// scripted answers by speaker (taken from the system prompt) and call index.
type scripted struct {
	mu      sync.Mutex
	prompts []model.Prompt
	answer  func(speaker model.Speaker, n int, p model.Prompt) (string, error)
}

func (s *scripted) Complete(_ context.Context, p model.Prompt) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, p)
	n := len(s.prompts)
	s.mu.Unlock()
	speaker := model.Responder
	if strings.HasPrefix(p.System, "CALLER") {
		speaker = model.Initiator
	}
	if s.answer == nil {
		return fmt.Sprintf("%s line %d", speaker, n), nil
	}
	return s.answer(speaker, n, p)
}

type judge struct {
	calls []int
	at    map[int]model.Verdict
}

func (j *judge) Evaluate(_ context.Context, tr model.Transcript) model.Verdict {
	j.calls = append(j.calls, tr.Len())
	if v, ok := j.at[tr.Len()]; ok {
		return v
	}
	return model.Continue("keep going")
}

func assertAlternates(tr model.Transcript) {
	for i, turn := range tr.Turns() {
		want := model.Initiator
		if i%2 == 1 {
			want = model.Responder
		}
		So(turn.Speaker, ShouldEqual, want)
	}
}

func TestTurnLimit(t *testing.T) {
	Convey("Given an arbiter that never ends the call", t, func() {
		c := &scripted{}
		j := &judge{}
		s := dialogue.New(c, j, caller, receiver, dialogue.WithMaxTurns(9), dialogue.WithArbitrationFrom(4), dialogue.WithArbitrationInterval(2))
		res := s.Run(context.Background())

		Convey("Then the call stops at the cap", func() {
			So(res.Transcript.Len(), ShouldEqual, 9)
			So(res.ReachedTurnLimit, ShouldBeTrue)
			So(res.Terminator, ShouldEqual, model.TerminatorNatural)
			So(s.State(), ShouldEqual, dialogue.StateEnded)
			assertAlternates(res.Transcript)
		})

		Convey("Then arbitration runs on schedule", func() {
			So(j.calls, ShouldResemble, []int{4, 6, 8})
		})
	})
}

func TestPromptPerspective(t *testing.T) {
	Convey("Given a running session", t, func() {
		c := &scripted{}
		s := dialogue.New(c, &judge{}, caller, receiver, dialogue.WithMaxTurns(3), dialogue.WithSeedMessage("Start now."))
		s.Run(context.Background())

		Convey("Then the opener answers the seed", func() {
			So(c.prompts[0].System, ShouldEqual, "CALLER")
			So(c.prompts[0].History, ShouldBeEmpty)
			So(c.prompts[0].Next, ShouldEqual, "Start now.")
		})

		Convey("Then each speaker sees its own turns as assistant messages", func() {
			So(c.prompts[1].Next, ShouldEqual, "initiator line 1")
			So(c.prompts[1].History, ShouldBeEmpty)
			p := c.prompts[2]
			So(p.History, ShouldResemble, []model.ChatMessage{{Role: model.RoleAssistant, Content: "initiator line 1"}})
			So(p.Next, ShouldEqual, "responder line 2")
		})
	})
}

func TestStepStates(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		s := dialogue.New(&scripted{}, &judge{}, caller, receiver, dialogue.WithMaxTurns(4), dialogue.WithArbitrationFrom(2), dialogue.WithArbitrationInterval(2))
		ctx := context.Background()

		var states []dialogue.State
		states = append(states, s.State())
		for s.Step(ctx) {
			states = append(states, s.State())
		}
		states = append(states, s.State())

		Convey("Then it walks the expected states", func() {
			So(states, ShouldResemble, []dialogue.State{
				dialogue.StateInit,
				dialogue.StateInitiatorTurn,
				dialogue.StateResponderTurn,
				dialogue.StateArbitration,
				dialogue.StateInitiatorTurn,
				dialogue.StateResponderTurn,
				dialogue.StateEnded,
			})
			So(s.Step(ctx), ShouldBeFalse)
			So(dialogue.StateArbitration.String(), ShouldEqual, "arbitration")
		})
	})
}

func TestHangupSignal(t *testing.T) {
	Convey("Given a responder that hangs up on its second turn", t, func() {
		c := &scripted{answer: func(sp model.Speaker, n int, _ model.Prompt) (string, error) {
			if sp == model.Responder && n == 4 {
				return "I'm reporting you. " + model.EndCallToken, nil
			}
			return "talk", nil
		}}
		j := &judge{}
		s := dialogue.New(c, j, caller, receiver, dialogue.WithMaxTurns(20), dialogue.WithArbitrationFrom(4), dialogue.WithArbitrationInterval(2))
		ctx := context.Background()

		for i := 0; i < 5; i++ { // init + 4 turns
			s.Step(ctx)
		}

		Convey("Then the session goes to closing despite a continue verdict being available", func() {
			So(s.State(), ShouldEqual, dialogue.StateClosing)
			So(j.calls, ShouldBeEmpty)

			res := s.Run(ctx)
			So(res.Transcript.Len(), ShouldEqual, 4)
			So(res.Terminator, ShouldEqual, model.TerminatorHangup)
			So(res.EndedBy, ShouldEqual, model.Responder)
			So(res.ReachedTurnLimit, ShouldBeFalse)
		})
	})

	Convey("Given a stray terminate token outside closing", t, func() {
		c := &scripted{answer: func(sp model.Speaker, n int, _ model.Prompt) (string, error) {
			if n == 1 {
				return "hello " + model.TerminateToken, nil
			}
			return "talk", nil
		}}
		res := dialogue.New(c, &judge{}, caller, receiver).Run(context.Background())

		Convey("Then it is treated as a hang-up", func() {
			So(res.Transcript.Len(), ShouldEqual, 1)
			So(res.Terminator, ShouldEqual, model.TerminatorHangup)
			So(res.EndedBy, ShouldEqual, model.Initiator)
		})
	})
}

func TestClosing(t *testing.T) {
	Convey("Given a terminate verdict after four turns", t, func() {
		ctx := context.Background()
		opts := []dialogue.Option{dialogue.WithMaxTurns(20), dialogue.WithArbitrationFrom(4), dialogue.WithArbitrationInterval(2)}

		Convey("When the responder must close but spoke last", func() {
			c := &scripted{}
			j := &judge{at: map[int]model.Verdict{4: {ShouldTerminate: true, Terminator: model.TerminatorResponder, Reason: "refused twice"}}}
			res := dialogue.New(c, j, caller, receiver, opts...).Run(ctx)

			Convey("Then the initiator bridges and the responder closes", func() {
				So(res.Transcript.Len(), ShouldEqual, 6)
				assertAlternates(res.Transcript)
				So(res.Terminator, ShouldEqual, model.TerminatorResponder)
				So(res.TerminationReason, ShouldEqual, "refused twice")
				So(c.prompts[4].System, ShouldEqual, "CALLER")
				So(c.prompts[5].System, ShouldEqual, "RECEIVER\n\nWRAP UP RECEIVER")
			})
		})

		Convey("When the initiator must close and speaks next", func() {
			c := &scripted{}
			j := &judge{at: map[int]model.Verdict{4: {ShouldTerminate: true, Terminator: model.TerminatorInitiator, Reason: "got the code"}}}
			res := dialogue.New(c, j, caller, receiver, opts...).Run(ctx)

			Convey("Then exactly one closing turn is added", func() {
				So(res.Transcript.Len(), ShouldEqual, 5)
				So(res.Terminator, ShouldEqual, model.TerminatorInitiator)
				So(c.prompts[4].System, ShouldEqual, "CALLER\n\nWRAP UP CALLER")
			})
		})

		Convey("When the verdict is natural", func() {
			j := &judge{at: map[int]model.Verdict{4: {ShouldTerminate: true, Terminator: model.TerminatorNatural, Reason: "done"}}}
			res := dialogue.New(&scripted{}, j, caller, receiver, opts...).Run(ctx)

			Convey("Then no further turn is issued", func() {
				So(res.Transcript.Len(), ShouldEqual, 4)
				So(res.Terminator, ShouldEqual, model.TerminatorNatural)
				So(res.TerminationReason, ShouldEqual, "done")
			})
		})

		Convey("When the closing exchange would exceed the cap", func() {
			j := &judge{at: map[int]model.Verdict{4: {ShouldTerminate: true, Terminator: model.TerminatorResponder, Reason: "refused"}}}
			res := dialogue.New(&scripted{}, j, caller, receiver, dialogue.WithMaxTurns(5), dialogue.WithArbitrationFrom(4)).Run(ctx)

			Convey("Then the call ends without closing turns", func() {
				So(res.Transcript.Len(), ShouldEqual, 4)
				So(res.Terminator, ShouldEqual, model.TerminatorResponder)
				So(res.ReachedTurnLimit, ShouldBeFalse)
			})
		})

		Convey("When the bridge turn hangs up", func() {
			c := &scripted{answer: func(sp model.Speaker, n int, _ model.Prompt) (string, error) {
				if n == 5 {
					return "fine, bye " + model.EndCallToken, nil
				}
				return "talk", nil
			}}
			j := &judge{at: map[int]model.Verdict{4: {ShouldTerminate: true, Terminator: model.TerminatorResponder, Reason: "refused"}}}
			res := dialogue.New(c, j, caller, receiver, opts...).Run(ctx)

			Convey("Then the hang-up overrides the verdict", func() {
				So(res.Transcript.Len(), ShouldEqual, 5)
				So(res.Terminator, ShouldEqual, model.TerminatorHangup)
				So(res.EndedBy, ShouldEqual, model.Initiator)
			})
		})
	})
}

func TestFallbackAndCancel(t *testing.T) {
	Convey("Given a completer that fails", t, func() {
		c := &scripted{answer: func(model.Speaker, int, model.Prompt) (string, error) {
			return "", errors.New("exhausted")
		}}
		res := dialogue.New(c, &judge{}, caller, receiver, dialogue.WithMaxTurns(4)).Run(context.Background())

		Convey("Then fallback utterances keep the call going", func() {
			So(res.Transcript.Len(), ShouldEqual, 4)
			So(res.FallbackTurns, ShouldEqual, 4)
			So(res.Transcript.BySpeaker(model.Initiator), ShouldResemble, []string{"caller fallback", "caller fallback"})
			So(res.ReachedTurnLimit, ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		c := &scripted{answer: func(_ model.Speaker, n int, _ model.Prompt) (string, error) {
			if n == 3 {
				cancel()
				return "", context.Canceled
			}
			return "talk", nil
		}}
		res := dialogue.New(c, &judge{}, caller, receiver).Run(ctx)

		Convey("Then the session ends without a fallback turn", func() {
			So(res.Transcript.Len(), ShouldEqual, 2)
			So(res.TerminationReason, ShouldEqual, "cancelled")
			So(res.FallbackTurns, ShouldEqual, 0)
		})
	})
}
