package simulate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/storyrank/internal/adapters/http/api"
	"github.com/okian/storyrank/internal/adapters/http/auth"
	"github.com/okian/storyrank/internal/adapters/ws"
	service "github.com/okian/storyrank/internal/app"
	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/internal/simulate"
	"github.com/okian/storyrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newConfig(url string) *simulate.Config {
	return &simulate.Config{
		BaseURL:     url,
		Stories:     8,
		Comparisons: 300,
		Workers:     4,
		Metric:      rating.Impact,
		Timeout:     5 * time.Second,
		Drain:       10 * time.Second,
		Tenant:      "sim",
		User:        "bot",
	}
}

func TestConfigValidate(t *testing.T) {
	Convey("Given simulation configs", t, func() {
		Convey("A complete config is valid", func() {
			So(newConfig("http://localhost:9080").Validate(), ShouldBeNil)
		})

		Convey("Invalid configs are rejected", func() {
			cases := []func(*simulate.Config){
				func(c *simulate.Config) { c.BaseURL = "" },
				func(c *simulate.Config) { c.Stories = 1 },
				func(c *simulate.Config) { c.Comparisons = 0 },
				func(c *simulate.Config) { c.Workers = 0 },
				func(c *simulate.Config) { c.Metric = "Impact" },
				func(c *simulate.Config) { c.Tenant = "" },
			}
			for _, mutate := range cases {
				cfg := newConfig("http://localhost:9080")
				mutate(cfg)
				So(cfg.Validate(), ShouldWrap, simulate.ErrInvalidConfig)
			}
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, auth.New(""), ws.NewHub()).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a simulation runs to completion", func() {
			rep, err := simulate.Run(ctx, newConfig(srv.URL))

			So(err, ShouldBeNil)
			So(rep.StoriesCreated, ShouldEqual, 8)
			So(rep.Submitted, ShouldEqual, 300)
			So(rep.Accepted, ShouldEqual, 300)
			So(rep.Failed, ShouldEqual, 0)
			So(rep.TotalPairs, ShouldEqual, 7)
			So(rep.Accuracy(), ShouldBeGreaterThan, 0.5)
			So(svc.GetStats(ctx).ComparisonsProcessed, ShouldEqual, 300)
		})

		Convey("When the service rejects the tenant headers", func() {
			cfg := newConfig(srv.URL)
			cfg.Token = "not-a-jwt"
			cfg.Tenant = ""
			strict := http.NewServeMux()
			api.NewServer(svc, auth.New("secret"), ws.NewHub()).Register(ctx, strict)
			locked := httptest.NewServer(strict)
			defer locked.Close()
			cfg.BaseURL = locked.URL

			_, err := simulate.Run(ctx, cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "story creation failed")
		})
	})
}
