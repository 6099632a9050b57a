package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/callgen/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		t.Setenv("CALLGEN_CONFIG", "")
		t.Setenv("CALLGEN_API_KEY", "test-key")

		convey.Convey("When loading with defaults and an API key", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then defaults survive", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.APIKey, convey.ShouldEqual, "test-key")
				convey.So(cfg.Output, convey.ShouldEqual, "data/conversations.jsonl")
			})
		})

		convey.Convey("When loading with environment variables", func() {
			t.Setenv("CALLGEN_WORKER_COUNT", "7")
			t.Setenv("CALLGEN_MIN_INTERVAL", "250ms")
			t.Setenv("CALLGEN_SAMPLING_MODE", "grid")
			t.Setenv("CALLGEN_RESUME", "true")
			t.Setenv("CALLGEN_TEMPERATURE", "0.5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env overrides defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 7)
				convey.So(cfg.MinInterval, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.Mode, convey.ShouldEqual, config.ModeGrid)
				convey.So(cfg.Resume, convey.ShouldBeTrue)
				convey.So(cfg.Temperature, convey.ShouldEqual, 0.5)
			})
		})

		convey.Convey("When loading with a YAML file", func() {
			path := filepath.Join(t.TempDir(), "callgen.yaml")
			yaml := `
fraud_count: 40
normal_count: 20
request_timeout: 30s
output: out/fraud.jsonl
scenario_weights:
  bank_impersonation:
    retired: 0.6
    student: 0.4
`
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			t.Setenv("CALLGEN_CONFIG", path)
			t.Setenv("CALLGEN_NORMAL_COUNT", "5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.FraudCount, convey.ShouldEqual, 40)
				convey.So(cfg.NormalCount, convey.ShouldEqual, 5)
				convey.So(cfg.RequestTimeout, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.Output, convey.ShouldEqual, "out/fraud.jsonl")
				convey.So(cfg.ScenarioWeights["bank_impersonation"]["retired"], convey.ShouldEqual, 0.6)
			})
		})

		convey.Convey("When the file is missing", func() {
			_, err := config.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the result is invalid", func() {
			t.Setenv("CALLGEN_SAMPLING_MODE", "bogus")
			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
