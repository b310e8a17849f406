package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/morozRed/ripple/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// eventsTotal counts processed change events by classification
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_events_total",
		Help: "Processed file change events by classification",
	}, []string{"classification"})

	// parseFailures counts files whose extraction degraded to an empty table
	parseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_parse_failures_total",
		Help: "Files that failed to parse, by language",
	}, []string{"language"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ripple_analysis_duration_seconds",
		Help:    "Time spent analyzing one change event",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	impactedSymbols = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ripple_impacted_symbols",
		Help:    "Symbols reported as impacted per change event",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 500},
	})

	trackedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripple_tracked_files",
		Help: "Files currently present in the project graph",
	})
)

// ObserveEvent records one processed event.
func ObserveEvent(classification string, elapsed time.Duration, impacted int) {
	eventsTotal.WithLabelValues(classification).Inc()
	analysisDuration.Observe(elapsed.Seconds())
	impactedSymbols.Observe(float64(impacted))
}

// ParseFailure records a file that could not be parsed.
func ParseFailure(language string) {
	if language == "" {
		language = "unknown"
	}
	parseFailures.WithLabelValues(language).Inc()
}

// SetTrackedFiles records the size of the project graph.
func SetTrackedFiles(n int) {
	trackedFiles.Set(float64(n))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
