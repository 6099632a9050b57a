package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/callgen/internal/adapters/repository"
	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func writeRecords(t *testing.T, path string, ids ...string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, id := range ids {
		if err := enc.Encode(model.Record{ID: id, Scenario: "tech_support", Turns: 6, Terminator: "natural"}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunMerge(t *testing.T) {
	convey.Convey("Given fraud and benign transcript files", t, func() {
		convey.So(logger.Init(logger.WithWriter(io.Discard)), convey.ShouldBeNil)
		dir := t.TempDir()
		fraud := filepath.Join(dir, "fraud.jsonl")
		normal := filepath.Join(dir, "normal.jsonl")
		writeRecords(t, fraud, "tts_fraud_00001", "tts_fraud_00002")
		writeRecords(t, normal, "tts_normal_00001")

		opts := options{fraud: fraud, normal: normal, output: filepath.Join(dir, "out", "dataset.jsonl"), seed: 3}

		convey.Convey("When they are merged", func() {
			convey.So(run(context.Background(), opts), convey.ShouldBeNil)

			convey.Convey("Then every record is labeled by its source", func() {
				records, err := repository.ReadFile(opts.output)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(records), convey.ShouldEqual, 3)
				for _, rec := range records {
					want := model.KindFraud
					if rec.ID == "tts_normal_00001" {
						want = model.KindNormal
					}
					convey.So(rec.Label, convey.ShouldEqual, want)
					convey.So(rec.IsFraud, convey.ShouldEqual, want.FraudFlag())
				}
			})

			convey.Convey("And statistics are written next to the dataset", func() {
				raw, err := os.ReadFile(filepath.Join(dir, "out", "statistics.json"))
				convey.So(err, convey.ShouldBeNil)

				var stats repository.Stats
				convey.So(json.Unmarshal(raw, &stats), convey.ShouldBeNil)
				convey.So(stats.Total, convey.ShouldEqual, 3)
				convey.So(stats.Labels["fraud"], convey.ShouldEqual, 2)
				convey.So(stats.Labels["normal"], convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When an input is missing", func() {
			opts.normal = filepath.Join(dir, "absent.jsonl")

			convey.Convey("Then the merge fails", func() {
				convey.So(run(context.Background(), opts), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When no inputs are given", func() {
			convey.So(run(context.Background(), options{output: opts.output}), convey.ShouldNotBeNil)
		})
	})
}
