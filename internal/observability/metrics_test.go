package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDispatch(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_dispatch_total", Help: "x"}, []string{"route", "outcome"})
	registry.MustRegister(counter)

	counter.WithLabelValues("workflow", "ok").Inc()
	counter.WithLabelValues("freeform", "error").Inc()

	if count := testutil.CollectAndCount(counter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	m := &Metrics{
		LLMRequestCounter:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_llm_req"}, []string{"provider", "model", "status"}),
		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "t_llm_dur"}, []string{"provider", "model"}),
		LLMTokensUsed:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_llm_tok"}, []string{"provider", "model", "type"}),
	}
	m.RecordLLMRequest("anthropic", "claude-sonnet", "success", 1.2, 100, 50)

	if testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("anthropic", "claude-sonnet", "success")) != 1 {
		t.Fatal("expected request counter incremented")
	}
	if testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("anthropic", "claude-sonnet", "prompt")) != 100 {
		t.Fatal("expected prompt tokens recorded")
	}
}

func TestRecordToolExecution(t *testing.T) {
	m := &Metrics{
		ToolExecutionCounter:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_tool_cnt"}, []string{"tool_name", "status"}),
		ToolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "t_tool_dur"}, []string{"tool_name"}),
	}
	m.RecordToolExecution("crowdstrike_device_status", "success", 0.3)
	if testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("crowdstrike_device_status", "success")) != 1 {
		t.Fatal("expected tool execution counted")
	}
}

func TestRecordWorkflowNodeAndRun(t *testing.T) {
	m := &Metrics{
		WorkflowNodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "t_wf_node"}, []string{"workflow", "node"}),
		WorkflowRunCounter:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_wf_run"}, []string{"workflow", "outcome"}),
	}
	m.RecordWorkflowNode("ioc_investigation", "lookupVirusTotal", 0.1)
	m.RecordWorkflowRun("ioc_investigation", "completed")

	if testutil.ToFloat64(m.WorkflowRunCounter.WithLabelValues("ioc_investigation", "completed")) != 1 {
		t.Fatal("expected workflow run counted")
	}
}

func TestRecordErrorAndSessions(t *testing.T) {
	m := &Metrics{
		ErrorCounter:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_err"}, []string{"component", "error_type"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_sessions"}),
	}
	m.RecordError("toolloop", "tool_unavailable")
	m.SetActiveSessions(4)

	if testutil.ToFloat64(m.ErrorCounter.WithLabelValues("toolloop", "tool_unavailable")) != 1 {
		t.Fatal("expected error counted")
	}
	if testutil.ToFloat64(m.ActiveSessions) != 4 {
		t.Fatal("expected active sessions gauge set")
	}
}

func TestSetCircuitOpen(t *testing.T) {
	m := &Metrics{
		RecoveryCircuitOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "t_circuit"}, []string{"class"}),
	}
	m.SetCircuitOpen("edr", true)
	if testutil.ToFloat64(m.RecoveryCircuitOpen.WithLabelValues("edr")) != 1 {
		t.Fatal("expected circuit gauge set to 1")
	}
	m.SetCircuitOpen("edr", false)
	if testutil.ToFloat64(m.RecoveryCircuitOpen.WithLabelValues("edr")) != 0 {
		t.Fatal("expected circuit gauge reset to 0")
	}
}
