// Package metrics holds the Prometheus collectors of formrules. They are
// registered with the default registry and served by Handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// statePasses tracks completed form state computations
	statePasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formrules_state_passes_total",
			Help: "Total form state computation passes",
		},
	)

	// statePassDuration tracks how long a full pass takes
	statePassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "formrules_state_pass_duration_seconds",
			Help:    "Duration of form state computation passes",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		},
	)

	// ruleEvaluations tracks condition evaluations by effect and outcome
	ruleEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrules_rule_evaluations_total",
			Help: "Total condition rule evaluations by effect and whether the condition held",
		},
		[]string{"effect", "matched"},
	)

	// expressionFaults tracks expressions that could not be evaluated
	expressionFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formrules_expression_faults_total",
			Help: "Total expressions that failed to evaluate and fell back to a default",
		},
	)

	// ruleReloads tracks rule reloads from watched definition files
	ruleReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrules_rule_reloads_total",
			Help: "Total rule reloads by result",
		},
		[]string{"result"},
	)
)

// RecordPass records one completed state computation pass.
func RecordPass(d time.Duration) {
	statePasses.Inc()
	statePassDuration.Observe(d.Seconds())
}

// RecordRuleEvaluation records one rule condition evaluation.
func RecordRuleEvaluation(effect string, matched bool) {
	ruleEvaluations.WithLabelValues(effect, strconv.FormatBool(matched)).Inc()
}

// RecordExpressionFault records an expression that fell back to its default.
func RecordExpressionFault() {
	expressionFaults.Inc()
}

// RecordReload records a rule reload; ok is false when the new rules were
// rejected.
func RecordReload(ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	ruleReloads.WithLabelValues(result).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
