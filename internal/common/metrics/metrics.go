// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_decisions_total",
			Help: "Total routing decisions by outcome and selected model",
		},
		[]string{"outcome", "model"},
	)

	TimingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timing_decisions_total",
			Help: "Total response-timing decisions by result",
		},
		[]string{"result"},
	)

	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "decision_duration_seconds",
			Help: "Duration of decision evaluation in seconds",
		},
		[]string{"task_type"},
	)

	UsageEventFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_event_write_failures_total",
			Help: "Usage events that could not be recorded",
		},
	)

	AnalyticsWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_write_failures_total",
			Help: "Decision events that could not be indexed",
		},
	)

	BudgetAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_alerts_total",
			Help: "Budget exceeded alerts by delivery channel",
		},
		[]string{"channel"},
	)
)
