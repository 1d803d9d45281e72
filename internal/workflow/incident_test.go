package workflow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/recovery"
)

func TestIncidentResponseNoHostname(t *testing.T) {
	rec := recovery.New(0, slog.Default())
	sources := IncidentSources{
		Ticketing:  staticTool("ticketing", models.ToolClassDefault, "Ticket #929947\nHostname: N/A\nUsername: N/A\nDevice ID: N/A\n"),
		EDR:        staticTool("edr", models.ToolClassEDR, "no detections"),
		SIEM:       staticTool("siem", models.ToolClassDefault, "no events"),
		VirusTotal: staticTool("vt", models.ToolClassDefault, "clean"),
		Recovery:   rec,
	}

	state := RunIncidentResponse(context.Background(), sources, "929947", "workflow incident response for ticket 929947", nil)

	if state.Hostname != "" {
		t.Fatalf("expected empty hostname, got %q", state.Hostname)
	}
	if state.Severity != SeverityLow {
		t.Fatalf("expected LOW severity, got %s", state.Severity)
	}
	if len(state.SkippedSteps) == 0 {
		t.Fatalf("expected skipped steps to be recorded")
	}
}

func TestIncidentResponseHighSeverityOnDetections(t *testing.T) {
	rec := recovery.New(0, slog.Default())
	sources := IncidentSources{
		Ticketing:  staticTool("ticketing", models.ToolClassDefault, "Ticket #1\nHostname: HOST-1\nUsername: jdoe\nDevice ID: D1\n"),
		EDR:        staticTool("edr", models.ToolClassEDR, "CRITICAL detection: ransomware behavior"),
		SIEM:       staticTool("siem", models.ToolClassDefault, "5 events"),
		VirusTotal: staticTool("vt", models.ToolClassDefault, "clean"),
		Recovery:   rec,
	}

	state := RunIncidentResponse(context.Background(), sources, "1", "workflow incident response for ticket 1", nil)

	if state.Hostname != "HOST-1" {
		t.Fatalf("expected hostname HOST-1, got %q", state.Hostname)
	}
	if state.Severity != SeverityHigh {
		t.Fatalf("expected HIGH severity, got %s", state.Severity)
	}
}

func TestIncidentResponsePostBackOnlyWhenRequested(t *testing.T) {
	rec := recovery.New(0, slog.Default())
	sources := IncidentSources{
		Ticketing:  staticTool("ticketing", models.ToolClassDefault, "Ticket #1\nHostname: N/A\n"),
		EDR:        staticTool("edr", models.ToolClassEDR, "no detections"),
		SIEM:       staticTool("siem", models.ToolClassDefault, "no events"),
		VirusTotal: staticTool("vt", models.ToolClassDefault, "clean"),
		Recovery:   rec,
	}

	noPost := RunIncidentResponse(context.Background(), sources, "1", "workflow incident response for ticket 1", nil)
	if noPost.PostBack {
		t.Fatalf("did not expect post back without trigger word")
	}

	withPost := RunIncidentResponse(context.Background(), sources, "1", "please post the summary to ticket 1", nil)
	if !withPost.PostBack {
		t.Fatalf("expected post back with trigger word")
	}
}
