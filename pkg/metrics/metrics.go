// Package metrics exports engine lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/evofitmeals/evoflow/pkg/eventbus"
	"github.com/evofitmeals/evoflow/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evoflow"

// Observer counts runs and action dispatches. It satisfies engine.Observer.
type Observer struct {
	registry *prometheus.Registry

	workflows         prometheus.Gauge
	executionsStarted *prometheus.CounterVec
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	actions           *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec
}

// NewObserver registers the engine metrics plus the Go and process
// collectors on a dedicated registry.
func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		workflows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflows_registered",
			Help:      "Number of workflows currently registered",
		}),
		executionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "Workflow runs started by trigger type",
		}, []string{"workflow_id", "trigger"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Workflow runs finished by outcome",
		}, []string{"workflow_id", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration of finished workflow runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow_id", "status"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_dispatches_total",
			Help:      "Action dispatches by type and result, retries included",
		}, []string{"action_type", "result"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of action dispatches",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"action_type"}),
	}

	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		o.workflows,
		o.executionsStarted,
		o.executions,
		o.executionDuration,
		o.actions,
		o.actionDuration,
	)

	return o
}

// Registry exposes the registry for tests and additional collectors.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func (o *Observer) Notify(_ context.Context, event eventbus.Event) {
	switch e := event.(type) {
	case *events.WorkflowAdded:
		o.workflows.Inc()
	case *events.WorkflowRemoved:
		o.workflows.Dec()
	case *events.ExecutionStarted:
		o.executionsStarted.WithLabelValues(e.WorkflowID, string(e.Trigger)).Inc()
	case *events.ExecutionSkipped:
		o.executions.WithLabelValues(e.WorkflowID, "skipped").Inc()
	case *events.ExecutionCompleted:
		o.executions.WithLabelValues(e.WorkflowID, "completed").Inc()
		o.executionDuration.WithLabelValues(e.WorkflowID, "completed").Observe(e.Duration.Seconds())
	case *events.ExecutionFailed:
		o.executions.WithLabelValues(e.WorkflowID, "failed").Inc()
		o.executionDuration.WithLabelValues(e.WorkflowID, "failed").Observe(e.Duration.Seconds())
	case *events.ActionInvoked:
		result := "success"
		if !e.Succeeded {
			result = "failure"
		}

		o.actions.WithLabelValues(string(e.ActionType), result).Inc()
		o.actionDuration.WithLabelValues(string(e.ActionType)).Observe(e.Duration.Seconds())
	}
}
