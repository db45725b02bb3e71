package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threat_engine_scans_total",
		Help: "Total number of scanned messages by direction and verdict",
	}, []string{"direction", "verdict"})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "threat_engine_scan_duration_seconds",
		Help:    "Time taken to score a message",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
	}, []string{"direction"})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threat_engine_actions_total",
		Help: "Actions attached to inbound scan results",
	}, []string{"action"})

	AnalyzerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threat_engine_analyzer_failures_total",
		Help: "Analyzer failures recovered during scans",
	}, []string{"analyzer"})

	ReputationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threat_engine_reputation_failures_total",
		Help: "Reputation store or cache operations that failed",
	}, []string{"operation"})

	RulesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threat_engine_rules_skipped_total",
		Help: "Rules skipped during evaluation because they could not be compiled",
	})

	RetrainDispatch = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threat_engine_retrain_dispatch_total",
		Help: "Retraining dispatches by outcome",
	}, []string{"status"})

	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threat_engine_event_publish_failures_total",
		Help: "Security events that could not be published to the stream",
	})
)
