package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide Prometheus metrics surface for the dispatch
// engine: request latency, tool outcomes, workflow node durations, error
// counts by component, and session gauges.
type Metrics struct {
	// DispatchDuration measures end-to-end Ask() latency.
	// Labels: route (workflow|help|tipper|rules|falcon|session_clear|greeting|freeform)
	DispatchDuration *prometheus.HistogramVec

	// DispatchCounter counts dispatches by route and outcome.
	DispatchCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM provider call latency in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider, model, status.
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption by provider, model, type.
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// WorkflowNodeDuration measures per-node latency within a workflow run.
	// Labels: workflow (ioc_investigation|incident_response), node
	WorkflowNodeDuration *prometheus.HistogramVec

	// WorkflowRunCounter counts workflow runs by kind and outcome.
	WorkflowRunCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge of current session count.
	ActiveSessions prometheus.Gauge

	// RecoveryCircuitOpen tracks whether a tool class's circuit breaker is
	// open. Labels: class
	RecoveryCircuitOpen *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus collectors. Call once at
// startup.
func NewMetrics() *Metrics {
	return &Metrics{
		DispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secops_bot_dispatch_duration_seconds",
				Help:    "Duration of Ask() dispatches by route",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 25, 60},
			},
			[]string{"route"},
		),
		DispatchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secops_bot_dispatch_total",
				Help: "Total dispatches by route and outcome",
			},
			[]string{"route", "outcome"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secops_bot_llm_request_duration_seconds",
				Help:    "Duration of LLM provider calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secops_bot_llm_requests_total",
				Help: "Total LLM requests by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secops_bot_llm_tokens_total",
				Help: "Total tokens consumed by provider, model and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secops_bot_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secops_bot_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		WorkflowNodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secops_bot_workflow_node_duration_seconds",
				Help:    "Duration of individual workflow nodes in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"workflow", "node"},
		),
		WorkflowRunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secops_bot_workflow_runs_total",
				Help: "Total workflow runs by kind and outcome",
			},
			[]string{"workflow", "outcome"},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secops_bot_errors_total",
				Help: "Total errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "secops_bot_active_sessions",
				Help: "Current number of sessions held in the store",
			},
		),
		RecoveryCircuitOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "secops_bot_recovery_circuit_open",
				Help: "1 if a tool class's error-recovery circuit is open",
			},
			[]string{"class"},
		),
	}
}

// RecordDispatch records one Ask() call.
func (m *Metrics) RecordDispatch(route, outcome string, durationSeconds float64) {
	m.DispatchCounter.WithLabelValues(route, outcome).Inc()
	m.DispatchDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordWorkflowNode records one node's latency within a workflow run.
func (m *Metrics) RecordWorkflowNode(workflow, node string, durationSeconds float64) {
	m.WorkflowNodeDuration.WithLabelValues(workflow, node).Observe(durationSeconds)
}

// RecordWorkflowRun records a completed workflow run.
func (m *Metrics) RecordWorkflowRun(workflow, outcome string) {
	m.WorkflowRunCounter.WithLabelValues(workflow, outcome).Inc()
}

// RecordError increments the error counter for a component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// SetCircuitOpen records circuit-breaker state for a tool class.
func (m *Metrics) SetCircuitOpen(class string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.RecoveryCircuitOpen.WithLabelValues(class).Set(v)
}
