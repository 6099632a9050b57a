package api_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/callgen/internal/adapters/http/api"
	"github.com/okian/callgen/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(staticStats{"run_id": "run-1", "planned": 10, "completed": 4}).Register(mux)
	return mux
}

func TestHealth(t *testing.T) {
	Convey("Given the monitoring routes", t, func() {
		mux := newMux()

		Convey("When GET /healthz", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then it reports ok with the run id", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
				So(body["run_id"], ShouldEqual, "run-1")
			})
		})

		Convey("When POST /healthz", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

			Convey("Then the method is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given the monitoring routes", t, func() {
		mux := newMux()

		Convey("When GET /stats", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then run progress is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["planned"], ShouldEqual, 10.0)
				So(body["completed"], ShouldEqual, 4.0)
			})
		})

		Convey("When no provider is wired", func() {
			rec := httptest.NewRecorder()
			api.NewStatsHandler(nil).HandleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the endpoint is unavailable", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(rec.Body.String(), ShouldContainSubstring, api.ErrNoRun.Error())
			})
		})
	})
}

func TestMetrics(t *testing.T) {
	Convey("Given traffic through the middleware", t, func() {
		mux := newMux()
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))
		metrics.RecordRequest("ok")

		Convey("When GET /metrics", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the custom registry is exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := rec.Body.String()
				So(body, ShouldContainSubstring, "callgen_generator_http_requests_total")
				So(body, ShouldContainSubstring, `endpoint="stats"`)
			})
		})
	})
}

func TestServe(t *testing.T) {
	Convey("Given a server on a free port", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		addr := ln.Addr().String()
		_ = ln.Close()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- api.NewServer(staticStats{}).Serve(ctx, addr) }()

		Convey("When it is up and then cancelled", func() {
			var resp *http.Response
			for i := 0; i < 50; i++ {
				resp, err = http.Get("http://" + addr + "/healthz")
				if err == nil {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			cancel()

			Convey("Then it answered and shuts down cleanly", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(<-done, ShouldBeNil)
			})
		})
	})

	Convey("Given an unusable address", t, func() {
		err := api.NewServer(staticStats{}).Serve(context.Background(), "bad-address")

		Convey("Then Serve fails", func() {
			So(err, ShouldNotBeNil)
			So(strings.Contains(err.Error(), "http serve failed"), ShouldBeTrue)
		})
	})
}
