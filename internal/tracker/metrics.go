package tracker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traderadar",
		Subsystem: "tracker",
		Name:      "price_ticks_total",
		Help:      "Price ticks handled, by source and result (stored, duplicate, error).",
	}, []string{"source", "result"})

	snapshotRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traderadar",
		Subsystem: "tracker",
		Name:      "pool_snapshot_rows_total",
		Help:      "Pool stat history rows written.",
	})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traderadar",
		Subsystem: "tracker",
		Name:      "alerts_published_total",
		Help:      "Alerts published, by type and severity.",
	}, []string{"type", "severity"})
)

// serveMetrics exposes /metrics on addr until ctx is done.
func (s *Service) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("tracker metrics listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("tracker metrics server failed", "err", err)
	}
}
