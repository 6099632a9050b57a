package service

import (
	"regexp"
	"testing"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/sampling"
	. "github.com/smartystreets/goconvey/convey"
)

var taskID = regexp.MustCompile(`^tts_(fraud|normal)_\d{5}$`)

func TestSpread(t *testing.T) {
	Convey("spread splits evenly with the remainder first", t, func() {
		So(spread(10, 4), ShouldResemble, []int{3, 3, 2, 2})
		So(spread(2, 4), ShouldResemble, []int{1, 1, 0, 0})
		So(spread(0, 3), ShouldResemble, []int{0, 0, 0})
		So(spread(5, 0), ShouldBeNil)
	})
}

func TestPlanner(t *testing.T) {
	Convey("Given a seeded planner", t, func() {
		newPlanner := func(mode string) *Planner {
			return NewPlanner(sampling.New(sampling.WithSeed(7)), mode, nil)
		}

		Convey("When planning stratified fraud tasks", func() {
			tasks := newPlanner(ModeStratified).Plan(model.KindFraud, 45)

			Convey("Then IDs are unique and well formed", func() {
				So(tasks, ShouldHaveLength, 45)
				seen := map[string]bool{}
				for _, tk := range tasks {
					So(taskID.MatchString(tk.ID), ShouldBeTrue)
					So(seen[tk.ID], ShouldBeFalse)
					seen[tk.ID] = true
					So(tk.Kind, ShouldEqual, model.KindFraud)
				}
				So(seen["tts_fraud_00001"], ShouldBeTrue)
				So(seen["tts_fraud_00045"], ShouldBeTrue)
			})

			Convey("Then turn caps fall in the fraud range", func() {
				for _, tk := range tasks {
					So(tk.MaxTurns, ShouldBeBetweenOrEqual, 20, 30)
				}
			})

			Convey("Then scenarios are spread evenly", func() {
				per := map[string]int{}
				for _, tk := range tasks {
					per[tk.Scenario]++
				}
				n := len(sampling.FraudScenarios())
				for _, c := range per {
					So(c, ShouldBeBetweenOrEqual, 45/n, 45/n+1)
				}
			})

			Convey("Then profiles are realistic", func() {
				profiles := make([]model.Profile, len(tasks))
				for i := range tasks {
					profiles[i] = tasks[i].Profile
				}
				q := sampling.New().Validate(profiles)
				So(q.Score, ShouldEqual, 1.0)
			})
		})

		Convey("When planning benign tasks", func() {
			tasks := newPlanner(ModeStratified).Plan(model.KindNormal, 12)

			Convey("Then they use benign scenarios and the shorter turn range", func() {
				So(tasks, ShouldHaveLength, 12)
				benign := map[string]bool{}
				for _, name := range sampling.NormalScenarios() {
					benign[name] = true
				}
				for _, tk := range tasks {
					So(benign[tk.Scenario], ShouldBeTrue)
					So(tk.MaxTurns, ShouldBeBetweenOrEqual, 15, 25)
					So(tk.ID, ShouldStartWith, "tts_normal_")
				}
			})
		})

		Convey("When planning a grid", func() {
			scenarios := sampling.FraudScenarios()
			combos := len(sampling.Brackets()) * len(model.Awarenesses) * len(scenarios)
			tasks := newPlanner(ModeGrid).Plan(model.KindFraud, combos+1)

			Convey("Then every bracket, awareness and scenario combination is covered", func() {
				type key struct {
					bracket, scenario string
					awareness         model.Awareness
				}
				cover := map[key]int{}
				for _, tk := range tasks {
					cover[key{tk.AgeRange, tk.Scenario, tk.Awareness}]++
					lo, hi, ok := sampling.BracketBounds(tk.AgeRange)
					So(ok, ShouldBeTrue)
					So(tk.Age, ShouldBeBetweenOrEqual, lo, hi)
				}
				So(len(cover), ShouldEqual, combos)
			})
		})

		Convey("When planning twice with the same seed", func() {
			a := newPlanner(ModeStratified).Plan(model.KindFraud, 20)
			b := newPlanner(ModeStratified).Plan(model.KindFraud, 20)

			Convey("Then the plans are identical", func() {
				So(a, ShouldResemble, b)
			})
		})

		Convey("When overriding the turn range", func() {
			p := NewPlanner(sampling.New(sampling.WithSeed(1)), ModeStratified,
				map[model.Kind]TurnRange{model.KindFraud: {Min: 8, Max: 8}, model.KindNormal: {Min: 9, Max: 3}})

			Convey("Then valid ranges apply and invalid ones keep defaults", func() {
				for _, tk := range p.Plan(model.KindFraud, 5) {
					So(tk.MaxTurns, ShouldEqual, 8)
				}
				for _, tk := range p.Plan(model.KindNormal, 5) {
					So(tk.MaxTurns, ShouldBeBetweenOrEqual, 15, 25)
				}
			})
		})

		Convey("When the count is zero", func() {
			So(newPlanner(ModeGrid).Plan(model.KindFraud, 0), ShouldBeEmpty)
		})
	})
}
