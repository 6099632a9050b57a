package persona_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/persona"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuilder(t *testing.T) {
	Convey("Given the default templates", t, func() {
		b, err := persona.NewBuilder(persona.Default())
		So(err, ShouldBeNil)

		task := model.Task{ID: "tts_fraud_00001", Kind: model.KindFraud, MaxTurns: 20, Profile: model.Profile{
			Scenario: "postal_scam", Age: 64, AgeRange: "56-70", Occupation: "retired", Awareness: model.AwarenessLow,
		}}

		Convey("When rendering the fraud caller", func() {
			p, err := b.Initiator(task)

			Convey("Then the profile and scenario appear in the prompt", func() {
				So(err, ShouldBeNil)
				So(p.Speaker, ShouldEqual, model.Initiator)
				So(p.System, ShouldContainSubstring, "64-year-old retired")
				So(p.System, ShouldContainSubstring, "customs fee")
				So(p.System, ShouldContainSubstring, model.EndCallToken)
				So(p.Closing, ShouldContainSubstring, model.TerminateToken)
				So(p.Fallback, ShouldNotBeBlank)
			})
		})

		Convey("When rendering the receiver", func() {
			p, err := b.Responder(task)

			Convey("Then awareness shapes the prompt", func() {
				So(err, ShouldBeNil)
				So(p.Speaker, ShouldEqual, model.Responder)
				So(p.System, ShouldContainSubstring, "trust people who sound official")
			})
		})

		Convey("When rendering a benign caller", func() {
			task.Kind = model.KindNormal
			task.Scenario = "survey"
			p, err := b.Initiator(task)
			So(err, ShouldBeNil)
			So(p.System, ShouldContainSubstring, "legitimate caller")
		})

		Convey("When rendering the arbiter", func() {
			s, err := b.Arbiter(persona.Policy{MinTurns: 6, StagnationWindow: 4, Strictness: "medium"})
			So(err, ShouldBeNil)
			So(s, ShouldContainSubstring, "before 6 turns")
			So(s, ShouldContainSubstring, "should_terminate")
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given an override file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "prompts.yaml")
		err := os.WriteFile(path, []byte("responder: \"You are {{.Occupation}}.\"\nscenarios:\n  survey: Ask three questions.\n"), 0o600)
		So(err, ShouldBeNil)

		tpl, err := persona.Load(path)

		Convey("Then set fields replace defaults and others are kept", func() {
			So(err, ShouldBeNil)
			So(tpl.Responder, ShouldEqual, "You are {{.Occupation}}.")
			So(tpl.Scenarios["survey"], ShouldEqual, "Ask three questions.")
			So(tpl.Scenarios["banking"], ShouldNotBeBlank)
			So(strings.Contains(tpl.FraudInitiator, "scammer"), ShouldBeTrue)
		})

		Convey("Then a missing file is an error", func() {
			_, err := persona.Load(filepath.Join(dir, "missing.yaml"))
			So(errors.Is(err, persona.ErrTemplate), ShouldBeTrue)
		})

		Convey("Then a broken template is rejected", func() {
			bad := persona.Default()
			bad.Arbiter = "{{.Nope"
			_, err := persona.NewBuilder(bad)
			So(errors.Is(err, persona.ErrTemplate), ShouldBeTrue)
		})
	})
}
