package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/observability"
	"github.com/secops-bot/engine/internal/recovery"
	"github.com/secops-bot/engine/internal/signals"
)

// Severity bands for the incident-response workflow.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// IncidentState is the running state of one incident-response run (spec §3).
type IncidentState struct {
	TicketID           string
	TicketData         string
	Hostname           string
	Username           string
	IOCsExtracted      []signals.IOC
	PerSourceResult    map[string]string
	IOCEnrichment      map[string]string
	Severity           Severity
	RecommendedActions []string
	Errors             []string // accumulating
	ExecutiveSummary   string
	PostBack           bool
	SkippedSteps       []string
}

func newIncidentState(ticketID string) IncidentState {
	return IncidentState{
		TicketID:        ticketID,
		Severity:        SeverityLow,
		PerSourceResult: make(map[string]string),
		IOCEnrichment:   make(map[string]string),
	}
}

func (s IncidentState) withError(msg string) IncidentState {
	s.Errors = append(append([]string{}, s.Errors...), msg)
	return s
}

// IncidentSources are the external collaborators the workflow calls
// through ErrorRecovery.
type IncidentSources struct {
	Ticketing models.Tool
	EDR       models.Tool
	SIEM      models.Tool
	VirusTotal models.Tool
	Recovery  *recovery.Manager
	Metrics   *observability.Metrics // optional; nil disables recording
}

const workflowIncidentResponse = "incident_response"

var (
	hostnameRe = regexp.MustCompile(`(?i)Hostname:\s*(\S+)`)
	usernameRe = regexp.MustCompile(`(?i)Username:\s*(\S+)`)
	deviceIDRe = regexp.MustCompile(`(?i)Device ID:\s*(\S+)`)
)

const naPrefix = "N/A"

// RunIncidentResponse executes the fixed incident-response graph:
// fetch_ticket -> extract_iocs -> check_edr_containment ->
// check_edr_detections -> search_siem -> enrich_iocs ->
// synthesize_findings -> generate_summary -> optional_post_back.
func RunIncidentResponse(ctx context.Context, sources IncidentSources, ticketID, requestText string, internalDomains map[string]bool) IncidentState {
	state := newIncidentState(ticketID)

	state = timeNode(sources.Metrics, workflowIncidentResponse, "fetch_ticket", func() IncidentState { return fetchTicket(ctx, sources, state) })
	state = extractIOCs(state, internalDomains)
	state = timeNode(sources.Metrics, workflowIncidentResponse, "check_edr_containment", func() IncidentState { return checkEDRContainment(ctx, sources, state) })
	state = timeNode(sources.Metrics, workflowIncidentResponse, "check_edr_detections", func() IncidentState { return checkEDRDetections(ctx, sources, state) })
	state = timeNode(sources.Metrics, workflowIncidentResponse, "search_siem", func() IncidentState { return searchSIEM(ctx, sources, state) })
	state = timeNode(sources.Metrics, workflowIncidentResponse, "enrich_iocs", func() IncidentState { return enrichIOCs(ctx, sources, state) })
	state = synthesizeFindings(state)
	state = generateExecutiveSummary(state)
	state = timeNode(sources.Metrics, workflowIncidentResponse, "optional_post_back", func() IncidentState { return maybePostBack(ctx, sources, requestText, state) })

	if sources.Metrics != nil {
		outcome := "ok"
		if len(state.Errors) > 0 {
			outcome = "partial_error"
		}
		sources.Metrics.RecordWorkflowRun(workflowIncidentResponse, outcome)
	}
	return state
}

func fetchTicket(ctx context.Context, sources IncidentSources, s IncidentState) IncidentState {
	return RunStep(ctx, "fetch_ticket", s, func(ctx context.Context, s IncidentState) (IncidentState, error) {
		if sources.Ticketing == nil {
			return s, fmt.Errorf("ticketing tool not configured")
		}
		args, _ := json.Marshal(map[string]string{"ticket_id": s.TicketID})
		text, err := sources.Recovery.Run(ctx, sources.Ticketing.Class(), func(ctx context.Context) (string, error) {
			t, _, err := sources.Ticketing.Invoke(ctx, args)
			return t, err
		})
		if err != nil {
			return s, err
		}
		s.TicketData = text

		if m := hostnameRe.FindStringSubmatch(text); m != nil && !strings.EqualFold(m[1], "N/A") {
			s.Hostname = strings.ToUpper(m[1])
		}
		if m := usernameRe.FindStringSubmatch(text); m != nil && !strings.EqualFold(m[1], "N/A") {
			s.Username = m[1]
		}
		if m := deviceIDRe.FindStringSubmatch(text); m != nil && !strings.EqualFold(m[1], "N/A") {
			s.PerSourceResult["device_id"] = m[1]
		}
		return s, nil
	}, IncidentState.withError)
}

func extractIOCs(s IncidentState, internalDomains map[string]bool) IncidentState {
	s.IOCsExtracted = signals.ExtractAll(s.TicketData, internalDomains)
	return s
}

func checkEDRContainment(ctx context.Context, sources IncidentSources, s IncidentState) IncidentState {
	return RunStep(ctx, "check_edr_containment", s, func(ctx context.Context, s IncidentState) (IncidentState, error) {
		if s.Hostname == "" {
			s.PerSourceResult["edr_containment"] = naPrefix + " - no hostname available"
			s.SkippedSteps = append(s.SkippedSteps, "EDR containment check")
			return s, nil
		}
		text, err := callEDR(ctx, sources, s.Hostname, "containment")
		if err != nil {
			return s, err
		}
		s.PerSourceResult["edr_containment"] = text
		return s, nil
	}, IncidentState.withError)
}

func checkEDRDetections(ctx context.Context, sources IncidentSources, s IncidentState) IncidentState {
	return RunStep(ctx, "check_edr_detections", s, func(ctx context.Context, s IncidentState) (IncidentState, error) {
		if s.Hostname == "" {
			s.PerSourceResult["edr_detections"] = naPrefix + " - no hostname available"
			s.SkippedSteps = append(s.SkippedSteps, "EDR detections check")
			return s, nil
		}
		text, err := callEDR(ctx, sources, s.Hostname, "detections")
		if err != nil {
			return s, err
		}
		s.PerSourceResult["edr_detections"] = text
		return s, nil
	}, IncidentState.withError)
}

func callEDR(ctx context.Context, sources IncidentSources, hostname, action string) (string, error) {
	if sources.EDR == nil {
		return "", fmt.Errorf("edr tool not configured")
	}
	if !sources.Recovery.Available(sources.EDR.Class()) {
		return sources.Recovery.Fallback(sources.EDR.Class(), action), nil
	}
	args, _ := json.Marshal(map[string]string{"hostname": hostname, "action": action})
	return sources.Recovery.Run(ctx, sources.EDR.Class(), func(ctx context.Context) (string, error) {
		t, _, err := sources.EDR.Invoke(ctx, args)
		return t, err
	})
}

func searchSIEM(ctx context.Context, sources IncidentSources, s IncidentState) IncidentState {
	return RunStep(ctx, "search_siem", s, func(ctx context.Context, s IncidentState) (IncidentState, error) {
		if s.Hostname == "" {
			s.PerSourceResult["siem"] = naPrefix + " - no hostname available"
			s.SkippedSteps = append(s.SkippedSteps, "SIEM search")
			return s, nil
		}
		if sources.SIEM == nil {
			return s, fmt.Errorf("siem tool not configured")
		}
		args, _ := json.Marshal(map[string]string{"hostname": s.Hostname})
		text, err := sources.Recovery.Run(ctx, sources.SIEM.Class(), func(ctx context.Context) (string, error) {
			t, _, err := sources.SIEM.Invoke(ctx, args)
			return t, err
		})
		if err != nil {
			return s, err
		}
		s.PerSourceResult["siem"] = text
		return s, nil
	}, IncidentState.withError)
}

func enrichIOCs(ctx context.Context, sources IncidentSources, s IncidentState) IncidentState {
	return RunStep(ctx, "enrich_iocs", s, func(ctx context.Context, s IncidentState) (IncidentState, error) {
		if sources.VirusTotal == nil {
			return s, nil
		}
		limit := s.IOCsExtracted
		if len(limit) > 5 {
			limit = limit[:5]
		}
		for _, ioc := range limit {
			args, _ := json.Marshal(map[string]string{"ioc_value": ioc.Value, "ioc_type": string(ioc.Type)})
			text, err := sources.Recovery.Run(ctx, sources.VirusTotal.Class(), func(ctx context.Context) (string, error) {
				t, _, err := sources.VirusTotal.Invoke(ctx, args)
				return t, err
			})
			if err != nil {
				s.IOCEnrichment[ioc.Value] = fmt.Sprintf("lookup failed: %s", err.Error())
				continue
			}
			s.IOCEnrichment[ioc.Value] = text
		}
		return s, nil
	}, IncidentState.withError)
}

func synthesizeFindings(s IncidentState) IncidentState {
	severity := SeverityLow

	detections := s.PerSourceResult["edr_detections"]
	if containsFold(detections, "critical") || containsFold(detections, "high") {
		severity = SeverityHigh
	} else if containsFold(detections, "detection") && severity == SeverityLow {
		severity = SeverityMedium
	}

	for _, result := range s.IOCEnrichment {
		if containsFold(result, "malicious") {
			severity = SeverityHigh
			break
		}
	}

	siem := s.PerSourceResult["siem"]
	if severity == SeverityLow && siem != "" && !strings.HasPrefix(siem, naPrefix) && !containsFold(siem, "no results") {
		severity = SeverityMedium
	}

	s.Severity = severity
	s.RecommendedActions = incidentActionsFor(severity)
	return s
}

func incidentActionsFor(sev Severity) []string {
	switch sev {
	case SeverityHigh:
		return []string{
			"Isolate affected host from the network",
			"Escalate to incident commander",
			"Preserve forensic evidence before remediation",
			"Block malicious indicators at perimeter",
		}
	case SeverityMedium:
		return []string{
			"Monitor host for further activity",
			"Review detection details with analyst on shift",
			"Add indicators to watchlist",
		}
	default:
		return []string{"Continue standard monitoring; no escalation required"}
	}
}

func generateExecutiveSummary(s IncidentState) IncidentState {
	var b strings.Builder
	b.WriteString("# Incident Response Executive Summary\n\n")
	fmt.Fprintf(&b, "Ticket: #%s\n\n", s.TicketID)
	fmt.Fprintf(&b, "Severity: %s\n\n", s.Severity)

	if s.Hostname != "" {
		fmt.Fprintf(&b, "Hostname: %s\n", s.Hostname)
	}
	if s.Username != "" {
		fmt.Fprintf(&b, "Username: %s\n", s.Username)
	}
	b.WriteString("\n## EDR Findings\n")
	writeTruncated(&b, s.PerSourceResult["edr_detections"], 1500)
	b.WriteString("\n## SIEM Findings\n")
	writeTruncated(&b, s.PerSourceResult["siem"], 1000)

	if len(s.IOCsExtracted) > 0 {
		b.WriteString("\n## IOC Enrichment\n")
		for _, ioc := range s.IOCsExtracted {
			result, ok := s.IOCEnrichment[ioc.Value]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "### %s (%s)\n", ioc.Value, ioc.Type)
			writeTruncated(&b, result, 500)
		}
	}

	b.WriteString("\n## Recommended Actions\n")
	for _, a := range s.RecommendedActions {
		fmt.Fprintf(&b, "- %s\n", a)
	}

	if len(s.SkippedSteps) > 0 {
		b.WriteString("\n## Skipped Steps\n")
		for _, step := range Dedup(s.SkippedSteps) {
			fmt.Fprintf(&b, "- %s\n", step)
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("\n## Errors\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	s.ExecutiveSummary = b.String()
	return s
}

func writeTruncated(b *strings.Builder, text string, max int) {
	if text == "" {
		b.WriteString(naPrefix + "\n")
		return
	}
	if len(text) > max {
		text = text[:max] + "... (truncated)"
	}
	fmt.Fprintf(b, "%s\n", text)
}

var postBackTriggerRe = regexp.MustCompile(`(?i)\b(post|write|update)\b`)

func maybePostBack(ctx context.Context, sources IncidentSources, requestText string, s IncidentState) IncidentState {
	if !postBackTriggerRe.MatchString(requestText) || sources.Ticketing == nil {
		return s
	}
	return RunStep(ctx, "optional_post_back", s, func(ctx context.Context, s IncidentState) (IncidentState, error) {
		note := fmt.Sprintf("## Automated Investigation Summary\n\n%s", s.ExecutiveSummary)
		args, _ := json.Marshal(map[string]string{"ticket_id": s.TicketID, "note": note})
		_, err := sources.Recovery.Run(ctx, sources.Ticketing.Class(), func(ctx context.Context) (string, error) {
			_, _, err := sources.Ticketing.Invoke(ctx, args)
			return "", err
		})
		if err != nil {
			return s, err
		}
		s.PostBack = true
		return s, nil
	}, IncidentState.withError)
}
