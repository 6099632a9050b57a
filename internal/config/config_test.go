package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/callgen/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Model, convey.ShouldEqual, "gemini-2.0-flash")
			convey.So(cfg.RequestTimeout, convey.ShouldEqual, 90*time.Second)
			convey.So(cfg.MaxRetries, convey.ShouldEqual, 5)
			convey.So(cfg.MinInterval, convey.ShouldEqual, 500*time.Millisecond)
			convey.So(cfg.MaxInterval, convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.Mode, convey.ShouldEqual, config.ModeStratified)
			convey.So(cfg.FraudMinTurns, convey.ShouldEqual, 20)
			convey.So(cfg.FraudMaxTurns, convey.ShouldEqual, 30)
			convey.So(cfg.NormalMinTurns, convey.ShouldEqual, 15)
			convey.So(cfg.NormalMaxTurns, convey.ShouldEqual, 25)
			convey.So(cfg.StagnationSimilarity, convey.ShouldEqual, 0.8)
			convey.So(cfg.WorkerCount, convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("Then it is invalid only for the missing API key", func() {
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "api_key")

			cfg.APIKey = "k"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()
		cfg.APIKey = "k"

		cases := []struct {
			name   string
			mutate func(c *config.Config)
			want   string
		}{
			{"unknown mode", func(c *config.Config) { c.Mode = "random" }, "sampling_mode"},
			{"nothing to do", func(c *config.Config) { c.FraudCount, c.NormalCount = 0, 0 }, "nothing to generate"},
			{"negative count", func(c *config.Config) { c.NormalCount = -1 }, "negative"},
			{"no workers", func(c *config.Config) { c.WorkerCount = 0 }, "worker_count"},
			{"inverted intervals", func(c *config.Config) { c.MaxInterval = c.MinInterval / 2 }, "rate limit"},
			{"inverted turns", func(c *config.Config) { c.FraudMaxTurns = 10 }, "fraud turn range"},
			{"similarity out of range", func(c *config.Config) { c.StagnationSimilarity = 1.5 }, "stagnation_similarity"},
			{"no output", func(c *config.Config) { c.Output = "" }, "output"},
		}
		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it is rejected", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}
	})
}
