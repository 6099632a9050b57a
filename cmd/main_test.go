package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/callgen/internal/adapters/repository"
	app "github.com/okian/callgen/internal/app"
	"github.com/okian/callgen/internal/config"
	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/persona"
	"github.com/okian/callgen/pkg/logger"
	"github.com/okian/callgen/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

// fakeGemini answers generateContent calls: verdicts for the judge, plain lines otherwise.
func fakeGemini(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		text := "Hello, this is the bank calling."
		if strings.Contains(string(raw), "should_terminate") {
			text = `{"should_terminate": true, "terminator": "natural", "reason": "done"}`
		}
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": text}}},
				"finishReason": "STOP",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testConfig(baseURL, dir string) *config.Config {
	cfg := config.New()
	cfg.APIKey = "test-key"
	cfg.BaseURL = baseURL
	cfg.MinInterval = time.Millisecond
	cfg.MaxInterval = 10 * time.Millisecond
	cfg.Jitter = 0
	cfg.BackoffUnit = time.Millisecond
	cfg.ArbiterRetryDelay = time.Millisecond
	cfg.WorkerCount = 2
	cfg.FraudCount = 2
	cfg.NormalCount = 1
	cfg.FraudMinTurns, cfg.FraudMaxTurns = 4, 4
	cfg.NormalMinTurns, cfg.NormalMaxTurns = 4, 4
	cfg.Seed = 11
	cfg.Output = filepath.Join(dir, "out.jsonl")
	return cfg
}

func TestApplyFlags(t *testing.T) {
	convey.Convey("Given a loaded config", t, func() {
		cfg := config.New()

		convey.Convey("When no flags are set", func() {
			convey.So(applyFlags(cfg, overrides{fraud: -1, normal: -1, total: -1}), convey.ShouldBeNil)

			convey.Convey("Then the config is unchanged", func() {
				convey.So(cfg.FraudCount, convey.ShouldEqual, config.New().FraudCount)
				convey.So(cfg.Output, convey.ShouldEqual, config.New().Output)
				convey.So(cfg.Resume, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When flags are set", func() {
			convey.So(applyFlags(cfg, overrides{resume: true, fraud: 0, normal: 7, total: -1, output: "x.jsonl"}), convey.ShouldBeNil)

			convey.Convey("Then they override the config", func() {
				convey.So(cfg.Resume, convey.ShouldBeTrue)
				convey.So(cfg.FraudCount, convey.ShouldEqual, 0)
				convey.So(cfg.NormalCount, convey.ShouldEqual, 7)
				convey.So(cfg.Output, convey.ShouldEqual, "x.jsonl")
			})
		})
	})
}

func TestApplyFlagsTotal(t *testing.T) {
	convey.Convey("Given a total and a fraud ratio", t, func() {
		cfg := config.New()

		convey.Convey("When the ratio is valid", func() {
			err := applyFlags(cfg, overrides{fraud: 3, normal: -1, total: 25, fraudRatio: 0.7})

			convey.Convey("Then the total is split and wins over the per-kind counts", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.FraudCount, convey.ShouldEqual, 17)
				convey.So(cfg.NormalCount, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When the ratio is out of range", func() {
			err := applyFlags(cfg, overrides{fraud: -1, normal: -1, total: 10, fraudRatio: 1.5})

			convey.Convey("Then it is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestServiceOptions(t *testing.T) {
	convey.Convey("Given a config with counts and turn ranges", t, func() {
		cfg := testConfig("http://unused", t.TempDir())
		cfg.FraudMinTurns, cfg.FraudMaxTurns = 10, 12

		convey.Convey("When a service is planned from it", func() {
			svc := app.New(nil, nil, serviceOptions(cfg, persona.Default(), nil)...)
			tasks, _ := svc.Plan(context.Background())

			convey.Convey("Then the plan follows the config", func() {
				convey.So(len(tasks), convey.ShouldEqual, 3)
				for _, task := range tasks {
					if task.Kind == model.KindFraud {
						convey.So(task.MaxTurns, convey.ShouldBeBetweenOrEqual, 10, 12)
					} else {
						convey.So(task.MaxTurns, convey.ShouldEqual, 4)
					}
				}
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a fake model endpoint", t, func() {
		convey.So(logger.Init(logger.WithWriter(io.Discard)), convey.ShouldBeNil)
		srv := fakeGemini(t)
		defer srv.Close()
		cfg := testConfig(srv.URL, t.TempDir())

		convey.Convey("When a batch runs", func() {
			err := run(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)

			records, err := repository.ReadFile(cfg.Output)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every planned conversation is written", func() {
				convey.So(len(records), convey.ShouldEqual, 3)
				for _, rec := range records {
					convey.So(rec.Turns, convey.ShouldBeGreaterThan, 0)
				}
			})

			convey.Convey("And a resumed run adds nothing", func() {
				cfg.Resume = true
				convey.So(run(context.Background(), cfg), convey.ShouldBeNil)

				again, err := repository.ReadFile(cfg.Output)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(again), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the prompts file is missing", func() {
			cfg.PromptsFile = filepath.Join(t.TempDir(), "missing.yaml")

			convey.Convey("Then run fails before generating", func() {
				convey.So(run(context.Background(), cfg), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the metrics registry", t, func() {
		updateSystemMetrics()

		convey.Convey("Then system gauges are exported", func() {
			families, err := metrics.GetRegistry().Gather()
			convey.So(err, convey.ShouldBeNil)

			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			convey.So(names["callgen_generator_system_goroutine_count"], convey.ShouldBeTrue)
		})
	})
}
