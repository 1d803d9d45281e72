package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/recovery"
)

func staticTool(name string, class models.ToolClass, text string) models.Tool {
	s := &testTool{name: name, class: class, text: text}
	return s
}

type testTool struct {
	name  string
	class models.ToolClass
	text  string
	err   error
}

func (t *testTool) Name() string              { return t.name }
func (t *testTool) Description() string       { return t.name }
func (t *testTool) Schema() json.RawMessage    { return json.RawMessage(`{"type":"object"}`) }
func (t *testTool) Class() models.ToolClass    { return t.class }
func (t *testTool) Invoke(ctx context.Context, args json.RawMessage) (string, string, error) {
	return t.text, "", t.err
}

func TestIOCInvestigationBenignIP(t *testing.T) {
	rec := recovery.New(0, slog.Default())
	sources := IOCSources{
		VirusTotal:     staticTool("vt", models.ToolClassDefault, "Threat Level: clean, no detections"),
		AbuseIPDB:      staticTool("abuse", models.ToolClassDefault, "Abuse Confidence Score: low"),
		Shodan:         staticTool("shodan", models.ToolClassDefault, "No known vulnerabilities"),
		RecordedFuture: staticTool("rf", models.ToolClassDefault, "Risk Score: 5/99"),
		QRadar:         staticTool("qradar", models.ToolClassDefault, "No results"),
		Recovery:       rec,
	}

	state := RunIOCInvestigation(context.Background(), sources, "workflow investigate 8.8.8.8", nil)

	if state.RiskScore != 0 {
		t.Fatalf("expected risk score 0, got %d", state.RiskScore)
	}
	if _, called := state.PerSourceResult["qradar"]; called {
		t.Fatalf("qradar should not be invoked for a benign IOC")
	}
}

func TestIOCInvestigationMaliciousIP(t *testing.T) {
	rec := recovery.New(0, slog.Default())
	sources := IOCSources{
		VirusTotal:     staticTool("vt", models.ToolClassDefault, "Threat Level: HIGH MALICIOUS"),
		AbuseIPDB:      staticTool("abuse", models.ToolClassDefault, "Abuse Confidence Score: HIGH"),
		Shodan:         staticTool("shodan", models.ToolClassDefault, "No known vulnerabilities"),
		RecordedFuture: staticTool("rf", models.ToolClassDefault, "Risk Score: 80/99"),
		QRadar:         staticTool("qradar", models.ToolClassDefault, "3 events found"),
		Recovery:       rec,
	}

	state := RunIOCInvestigation(context.Background(), sources, "workflow investigate 185.220.101.1", nil)

	if state.RiskScore < RiskHigh {
		t.Fatalf("expected risk >= 50, got %d", state.RiskScore)
	}
	if _, called := state.PerSourceResult["qradar"]; !called {
		t.Fatalf("qradar should be invoked for high-risk IOC")
	}
	if len(state.RecommendedActions) == 0 || state.RecommendedActions[0] != "IMMEDIATE: Block IOC at perimeter" {
		t.Fatalf("unexpected recommended actions: %+v", state.RecommendedActions)
	}
}

func TestIOCInvestigationNoIOCFound(t *testing.T) {
	rec := recovery.New(0, slog.Default())
	state := RunIOCInvestigation(context.Background(), IOCSources{Recovery: rec}, "workflow investigate nothing here", nil)
	if state.IOCValue != "" {
		t.Fatalf("expected no IOC extracted")
	}
	if state.FinalReport == "" {
		t.Fatalf("expected fallback report text")
	}
}
