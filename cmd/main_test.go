package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/ccsl/internal/adapters/http/api"
	service "github.com/okian/ccsl/internal/app"
	"github.com/okian/ccsl/internal/config"
	"github.com/okian/ccsl/pkg/metrics"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("CCSL_ADDR", ":8080")
			_ = os.Setenv("CCSL_VERIFICATION_QUEUE_SIZE", "1000")
			_ = os.Setenv("CCSL_VERIFIER_WORKERS", "4")
			defer func() {
				_ = os.Unsetenv("CCSL_ADDR")
				_ = os.Unsetenv("CCSL_VERIFICATION_QUEUE_SIZE")
				_ = os.Unsetenv("CCSL_VERIFIER_WORKERS")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.VerificationQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.VerifierWorkers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := service.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable from config", func() {
				svc := service.New(service.FromConfig(config.New())...)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := service.New()

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc, maxPaymentWait)
				convey.So(server, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the system metrics updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("When the service metrics updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startServiceMetricsUpdater(ctx, service.New()) }, convey.ShouldNotPanic)
		})

		convey.Convey("When updating system metrics", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When updating service metrics of a stopped service", func() {
			svc := service.New()
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given a router over a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
			service.WithVerificationDelay(0),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newRouter(ctx, svc))
		defer srv.Close()

		convey.Convey("Then the API routes answer", func() {
			resp, err := http.Get(srv.URL + "/ledger")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the docs routes answer", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the evaluate route answers", func() {
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/evaluate", strings.NewReader(`{"code":"x := 1"}`))
			resp, err := http.DefaultClient.Do(req)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("CCSL_ADDR", "")
			defer func() { _ = os.Unsetenv("CCSL_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation with extreme options", func() {
			svc := service.New(
				service.WithWorkerCount(0),
				service.WithQueueSize(0),
				service.WithDedupeSize(0),
			)
			convey.So(svc, convey.ShouldNotBeNil)
			convey.So(svc.GetStats()["started"], convey.ShouldEqual, false)
		})
	})
}

func TestMainApplicationPerformance(t *testing.T) {
	convey.Convey("Given main application performance", t, func() {
		convey.Convey("Then service creation should be fast", func() {
			start := time.Now()
			svc := service.New()
			duration := time.Since(start)

			convey.So(svc, convey.ShouldNotBeNil)
			convey.So(duration, convey.ShouldBeLessThan, 100*time.Millisecond)
		})

		convey.Convey("And metrics manager creation should be fast", func() {
			start := time.Now()
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			duration := time.Since(start)

			convey.So(manager, convey.ShouldNotBeNil)
			convey.So(duration, convey.ShouldBeLessThan, 100*time.Millisecond)
		})
	})
}
