package metrics

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "pager_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pipelineRuns    *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec

	exposureLatency *prometheus.HistogramVec

	modelRuns *prometheus.CounterVec

	versionsPublished *prometheus.CounterVec
	storeRetries      prometheus.Counter

	alertDecisions  *prometheus.CounterVec
	staleSkips      prometheus.Counter
	notifications   *prometheus.CounterVec
	exportTotal     *prometheus.CounterVec
	exportLatency   *prometheus.HistogramVec
	eventCountGauge prometheus.Gauge
)

// Init registers observability metrics and the DB-backed event gauge.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		pipelineRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total loss pipeline runs by result",
			},
			[]string{"result"},
		)
		pipelineLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_run_latency_seconds",
				Help:    "Loss pipeline run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exposureLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "exposure_latency_seconds",
				Help:    "Exposure computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		modelRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "model_runs_total",
				Help: "Total loss model runs by model and result",
			},
			[]string{"model", "result"},
		)

		versionsPublished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "versions_published_total",
				Help: "Total published versions by summary alert level",
			},
			[]string{"level"},
		)
		storeRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "version_store_retries_total",
				Help: "Total transactional append retries",
			},
		)

		alertDecisions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_decisions_total",
				Help: "Total subscriber alert decisions by verdict",
			},
			[]string{"verdict"},
		)
		staleSkips = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "stale_event_skips_total",
				Help: "Total decision rounds skipped by the elapsed-time cutoff",
			},
		)
		notifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification sends by channel and result",
			},
			[]string{"channel", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "version_export_total",
				Help: "Total version export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "version_export_latency_seconds",
				Help:    "Version export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		eventCountGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "events_total",
				Help: "Number of events with at least one published version",
			},
		)

		prometheus.MustRegister(
			pipelineRuns,
			pipelineLatency,
			exposureLatency,
			modelRuns,
			versionsPublished,
			storeRetries,
			alertDecisions,
			staleSkips,
			notifications,
			exportTotal,
			exportLatency,
			eventCountGauge,
		)

		if db != nil {
			go pollEventCount(db, logger)
		}
	})
}

func pollEventCount(db *sql.DB, logger *log.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var count float64
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pager_events`).Scan(&count)
		cancel()
		if err != nil {
			if logger != nil {
				logger.Printf("metrics: event count poll error: %v", err)
			}
			continue
		}
		if eventCountGauge != nil {
			eventCountGauge.Set(count)
		}
	}
}

// ObservePipelineRun records one pipeline run's latency and result.
func ObservePipelineRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pipelineRuns != nil {
		pipelineRuns.WithLabelValues(result).Inc()
	}
	if pipelineLatency != nil {
		pipelineLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExposure records exposure computation latency and result.
func ObserveExposure(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if exposureLatency != nil {
		exposureLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncModelRun increments the per-model run counter.
func IncModelRun(model, result string) {
	if model == "" {
		model = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if modelRuns != nil {
		modelRuns.WithLabelValues(model, result).Inc()
	}
}

// IncVersionPublished counts a published version by summary level.
func IncVersionPublished(level string) {
	if level == "" {
		level = "unknown"
	}
	if versionsPublished != nil {
		versionsPublished.WithLabelValues(level).Inc()
	}
}

// IncStoreRetry counts one transactional append retry.
func IncStoreRetry() {
	if storeRetries != nil {
		storeRetries.Inc()
	}
}

// IncAlertDecision counts one subscriber decision verdict ("notify"/"skip").
func IncAlertDecision(verdict string) {
	if verdict == "" {
		verdict = "unknown"
	}
	if alertDecisions != nil {
		alertDecisions.WithLabelValues(verdict).Inc()
	}
}

// IncStaleSkip counts a decision round skipped by the elapsed-time cutoff.
func IncStaleSkip() {
	if staleSkips != nil {
		staleSkips.Inc()
	}
}

// IncNotification counts a notification send attempt by channel and result.
func IncNotification(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notifications != nil {
		notifications.WithLabelValues(channel, result).Inc()
	}
}

// ObserveExport records version export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	VerdictNotify = "notify"
	VerdictSkip   = "skip"
)
