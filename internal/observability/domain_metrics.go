package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	textToSQLRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boundarybytes_text_to_sql_requests_total",
			Help: "Total number of text-to-sql requests by terminal outcome code.",
		},
		[]string{"code"},
	)
	sqlGenerationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boundarybytes_sql_generation_latency_ms",
			Help:    "Latency of the text-generation call in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		},
	)
	queryExecutionLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boundarybytes_query_execution_latency_ms",
			Help:    "Execution latency of generated statements in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
		},
		[]string{"stage"},
	)
	sqlRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boundarybytes_sql_rejections_total",
			Help: "Total number of generated statements rejected before execution.",
		},
		[]string{"stage"},
	)
	playerLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boundarybytes_player_lookups_total",
			Help: "Total number of player-name lookups by outcome.",
		},
		[]string{"outcome"},
	)
	auditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boundarybytes_audit_write_failures_total",
			Help: "Total number of failed audit log writes.",
		},
	)
	sseEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boundarybytes_sse_events_total",
			Help: "Total number of server-sent events written by event name.",
		},
		[]string{"event"},
	)
	ingestMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boundarybytes_ingest_matches_total",
			Help: "Total number of matches processed by CSV ingestion.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		textToSQLRequestsTotal,
		sqlGenerationLatencyMs,
		queryExecutionLatencyMs,
		sqlRejectionsTotal,
		playerLookupsTotal,
		auditWriteFailuresTotal,
		sseEventsTotal,
		ingestMatchesTotal,
	)
}

func ObserveTextToSQLOutcome(code string) {
	if code == "" {
		code = "OK"
	}
	textToSQLRequestsTotal.WithLabelValues(code).Inc()
}

func ObserveSQLGeneration(elapsed time.Duration) {
	sqlGenerationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveQueryExecution(stage string, elapsed time.Duration) {
	queryExecutionLatencyMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func IncrementSQLRejection(stage string) {
	sqlRejectionsTotal.WithLabelValues(stage).Inc()
}

func IncrementPlayerLookup(outcome string) {
	playerLookupsTotal.WithLabelValues(outcome).Inc()
}

func IncrementAuditWriteFailure() {
	auditWriteFailuresTotal.Inc()
}

func IncrementSSEEvent(event string) {
	sseEventsTotal.WithLabelValues(event).Inc()
}

func IncrementIngestedMatch(status string) {
	ingestMatchesTotal.WithLabelValues(status).Inc()
}
