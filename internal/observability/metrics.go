// Package observability — metrics.go
//
// Prometheus metrics for the falldetect agent.
//
// Endpoint: GET /metrics on 127.0.0.1:9092 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: the configured address; the default is loopback-only.
//
// Metric naming convention: falldetect_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for falldetect.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Ring buffer ──────────────────────────────────────────────────────────

	BufferDepth prometheus.Gauge

	// ─── Detection ────────────────────────────────────────────────────────────

	DetectionsTotal       *prometheus.CounterVec
	DetectionEmptyTotal   prometheus.Counter
	DetectionLatencyHist  prometheus.Histogram

	// ─── State machine ────────────────────────────────────────────────────────

	StateTransitionsTotal *prometheus.CounterVec
	FallsConfirmedTotal   prometheus.Counter
	RenotificationsTotal  prometheus.Counter

	// ─── Clip recorder ────────────────────────────────────────────────────────

	ClipsRecordedTotal prometheus.Counter
	ClipsSkippedTotal  *prometheus.CounterVec

	// ─── Skeleton extraction ──────────────────────────────────────────────────

	ExtractionsTotal      *prometheus.CounterVec
	ExtractionQueueDepth  prometheus.Gauge

	// ─── Uploader ─────────────────────────────────────────────────────────────

	UploadsTotal       *prometheus.CounterVec
	UploadAttemptsHist prometheus.Histogram

	// ─── Retention ────────────────────────────────────────────────────────────

	RetentionDeletedTotal prometheus.Counter
	RetentionFreedBytes   prometheus.Counter
	RetentionSkippedTotal prometheus.Counter

	// ─── Agent ────────────────────────────────────────────────────────────────

	AgentUptimeSeconds prometheus.Gauge
	startTime          time.Time
}

// NewMetrics creates and registers all falldetect Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		BufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "falldetect", Subsystem: "ringbuffer", Name: "depth",
			Help: "Current number of frames held in the ring buffer.",
		}),

		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "detection", Name: "total",
			Help: "Total detections performed, by kind (bbox, skeleton).",
		}, []string{"kind"}),

		DetectionEmptyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "detection", Name: "empty_total",
			Help: "Total frames for which the detector returned no detections.",
		}),

		DetectionLatencyHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "falldetect", Subsystem: "detection", Name: "latency_seconds",
			Help: "Detector inference latency in seconds.", Buckets: prometheus.DefBuckets,
		}),

		StateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "escalation", Name: "state_transitions_total",
			Help: "Total state transitions, by from_state and to_state.",
		}, []string{"from_state", "to_state"}),

		FallsConfirmedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "escalation", Name: "falls_confirmed_total",
			Help: "Total distinct fall events confirmed (excludes re-notifications).",
		}),

		RenotificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "escalation", Name: "renotifications_total",
			Help: "Total re-notification emissions for an already-confirmed event.",
		}),

		ClipsRecordedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "recorder", Name: "clips_recorded_total",
			Help: "Total clip files successfully encoded.",
		}),

		ClipsSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "recorder", Name: "clips_skipped_total",
			Help: "Total clip recordings skipped, by reason (empty_snapshot, encode_failed).",
		}, []string{"reason"}),

		ExtractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "skeleton", Name: "extractions_total",
			Help: "Total skeleton extractions performed, by outcome (confirmed, cleared).",
		}, []string{"outcome"}),

		ExtractionQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "falldetect", Subsystem: "skeleton", Name: "queue_depth",
			Help: "Current depth of the extraction worker pool's job queue.",
		}),

		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "uploader", Name: "total",
			Help: "Total upload attempts, by outcome (uploaded, failed, dry_run).",
		}, []string{"outcome"}),

		UploadAttemptsHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "falldetect", Subsystem: "uploader", Name: "attempts",
			Help:    "Number of attempts taken to resolve one artifact upload.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),

		RetentionDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "retention", Name: "deleted_total",
			Help: "Total clip files deleted by the retention scheduler.",
		}),

		RetentionFreedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "retention", Name: "freed_bytes_total",
			Help: "Total bytes freed by the retention scheduler.",
		}),

		RetentionSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falldetect", Subsystem: "retention", Name: "skipped_total",
			Help: "Total expired rows skipped because the clip file was already absent.",
		}),

		AgentUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "falldetect", Subsystem: "agent", Name: "uptime_seconds",
			Help: "Number of seconds since the agent started.",
		}),
	}

	reg.MustRegister(
		m.BufferDepth,
		m.DetectionsTotal, m.DetectionEmptyTotal, m.DetectionLatencyHist,
		m.StateTransitionsTotal, m.FallsConfirmedTotal, m.RenotificationsTotal,
		m.ClipsRecordedTotal, m.ClipsSkippedTotal,
		m.ExtractionsTotal, m.ExtractionQueueDepth,
		m.UploadsTotal, m.UploadAttemptsHist,
		m.RetentionDeletedTotal, m.RetentionFreedBytes, m.RetentionSkippedTotal,
		m.AgentUptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on the given address.
// Blocks until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the AgentUptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.AgentUptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
