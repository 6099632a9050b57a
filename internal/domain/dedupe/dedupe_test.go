package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/callgen/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When created without options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it is empty", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When preloaded with IDs from a previous run", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithSeen("tts_fraud_00001", "tts_fraud_00002", "tts_fraud_00001", ""))

			Convey("Then duplicates and empty IDs are ignored", func() {
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("Then preloaded IDs report as seen", func() {
				So(d.SeenAndRecord(ctx, "tts_fraud_00002"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "tts_fraud_00003"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When recording the same ID twice", func() {
			d := dedupe.NewInMemoryDeduper()
			first := d.SeenAndRecord(ctx, "tts_normal_00001")
			second := d.SeenAndRecord(ctx, "tts_normal_00001")

			Convey("Then only the first is new", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording an ID", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithSeen("a"))
			d.Unrecord(ctx, "a")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When many goroutines race on the same IDs", func() {
			d := dedupe.NewInMemoryDeduper()
			var fresh atomic.Int64
			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						if !d.SeenAndRecord(ctx, fmt.Sprintf("id-%d", i)) {
							fresh.Add(1)
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each ID is new exactly once", func() {
				So(fresh.Load(), ShouldEqual, 100)
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
