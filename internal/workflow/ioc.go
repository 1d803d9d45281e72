package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/observability"
	"github.com/secops-bot/engine/internal/recovery"
	"github.com/secops-bot/engine/internal/signals"
)

// Risk bands, per spec §4.7.1.
const (
	RiskHigh   = 50
	RiskMedium = 25
)

// IOCState is the running state of one IOC investigation (spec §3).
type IOCState struct {
	Query              string
	IOCValue           string
	IOCType            signals.IOCType
	PerSourceResult    map[string]string
	RiskFactors        []string // accumulating
	RiskScore          int
	RecommendedActions []string
	Errors             []string // accumulating
	FinalReport        string
}

func newIOCState(query string) IOCState {
	return IOCState{Query: query, PerSourceResult: make(map[string]string)}
}

func (s IOCState) withError(msg string) IOCState {
	s.Errors = append(append([]string{}, s.Errors...), msg)
	return s
}

// IOCSources are the external lookups the investigation calls through
// ErrorRecovery; each is a Tool (spec keeps concrete clients out of core).
type IOCSources struct {
	VirusTotal     models.Tool
	AbuseIPDB      models.Tool
	Shodan         models.Tool
	RecordedFuture models.Tool
	QRadar         models.Tool
	Recovery       *recovery.Manager
	Metrics        *observability.Metrics // optional; nil disables recording
}

const workflowIOCInvestigation = "ioc_investigation"

// RunIOCInvestigation executes the fixed IOC investigation graph:
// detect_type -> lookup_virustotal -> lookup_abuseipdb -> lookup_shodan ->
// lookup_recorded_future -> synthesize_risk -> {qradar if risk>=50} ->
// generate_report.
func RunIOCInvestigation(ctx context.Context, sources IOCSources, query string, internalDomains map[string]bool) IOCState {
	state := newIOCState(query)

	state = timeNode(sources.Metrics, workflowIOCInvestigation, "detect_type", func() IOCState {
		return RunStep(ctx, "detect_type", state, func(ctx context.Context, s IOCState) (IOCState, error) {
			ioc, ok := signals.ExtractPrimaryIOC(query, internalDomains)
			if !ok {
				return s, fmt.Errorf("could not identify an IOC in the request")
			}
			s.IOCValue = ioc.Value
			s.IOCType = ioc.Type
			return s, nil
		}, IOCState.withError)
	})

	if state.IOCValue == "" {
		state.FinalReport = "Could not identify an IOC (IP, domain, hash, or URL) in your request. Please include one and try again."
		if sources.Metrics != nil {
			sources.Metrics.RecordWorkflowRun(workflowIOCInvestigation, "rejected")
		}
		return state
	}

	state = timeNode(sources.Metrics, workflowIOCInvestigation, "lookup_virustotal", func() IOCState { return lookupVirusTotal(ctx, sources, state) })
	state = timeNode(sources.Metrics, workflowIOCInvestigation, "lookup_abuseipdb", func() IOCState { return lookupAbuseIPDB(ctx, sources, state) })
	state = timeNode(sources.Metrics, workflowIOCInvestigation, "lookup_shodan", func() IOCState { return lookupShodan(ctx, sources, state) })
	state = timeNode(sources.Metrics, workflowIOCInvestigation, "lookup_recorded_future", func() IOCState { return lookupRecordedFuture(ctx, sources, state) })
	state = synthesizeRisk(state)

	if state.RiskScore >= RiskHigh {
		state = timeNode(sources.Metrics, workflowIOCInvestigation, "search_qradar", func() IOCState { return lookupQRadar(ctx, sources, state) })
	}

	state = generateIOCReport(state)
	if sources.Metrics != nil {
		outcome := "ok"
		if len(state.Errors) > 0 {
			outcome = "partial_error"
		}
		sources.Metrics.RecordWorkflowRun(workflowIOCInvestigation, outcome)
	}
	return state
}

func callSource(ctx context.Context, rec *recovery.Manager, tool models.Tool, iocValue string, iocType signals.IOCType) (string, error) {
	if tool == nil {
		return "N/A", nil
	}
	if !rec.Available(tool.Class()) {
		return rec.Fallback(tool.Class(), string(iocType)), nil
	}
	args, _ := json.Marshal(map[string]string{"ioc_value": iocValue, "ioc_type": string(iocType)})
	return rec.Run(ctx, tool.Class(), func(ctx context.Context) (string, error) {
		text, _, err := tool.Invoke(ctx, args)
		return text, err
	})
}

func lookupVirusTotal(ctx context.Context, sources IOCSources, s IOCState) IOCState {
	return RunStep(ctx, "lookup_virustotal", s, func(ctx context.Context, s IOCState) (IOCState, error) {
		text, err := callSource(ctx, sources.Recovery, sources.VirusTotal, s.IOCValue, s.IOCType)
		if err != nil {
			return s, err
		}
		s.PerSourceResult["virustotal"] = text
		if containsFold(text, "high") || containsFold(text, "malicious") {
			s.RiskFactors = append(s.RiskFactors, "VirusTotal: High threat level detected")
		} else if containsFold(text, "medium") {
			s.RiskFactors = append(s.RiskFactors, "VirusTotal: Medium threat level detected")
		}
		return s, nil
	}, IOCState.withError)
}

func lookupAbuseIPDB(ctx context.Context, sources IOCSources, s IOCState) IOCState {
	return RunStep(ctx, "lookup_abuseipdb", s, func(ctx context.Context, s IOCState) (IOCState, error) {
		if s.IOCType != signals.IOCTypeIP {
			s.PerSourceResult["abuseipdb"] = "N/A"
			return s, nil
		}
		text, err := callSource(ctx, sources.Recovery, sources.AbuseIPDB, s.IOCValue, s.IOCType)
		if err != nil {
			return s, err
		}
		s.PerSourceResult["abuseipdb"] = text
		if containsFold(text, "high") {
			s.RiskFactors = append(s.RiskFactors, "AbuseIPDB: High abuse confidence score")
		} else if containsFold(text, "medium") {
			s.RiskFactors = append(s.RiskFactors, "AbuseIPDB: Medium abuse confidence score")
		}
		return s, nil
	}, IOCState.withError)
}

func lookupShodan(ctx context.Context, sources IOCSources, s IOCState) IOCState {
	return RunStep(ctx, "lookup_shodan", s, func(ctx context.Context, s IOCState) (IOCState, error) {
		text, err := callSource(ctx, sources.Recovery, sources.Shodan, s.IOCValue, s.IOCType)
		if err != nil {
			return s, err
		}
		s.PerSourceResult["shodan"] = text
		if containsFold(text, "cve") || containsFold(text, "vuln") {
			s.RiskFactors = append(s.RiskFactors, "Shodan: Known CVEs detected on infrastructure")
		}
		if containsFold(text, "high") {
			s.RiskFactors = append(s.RiskFactors, "Shodan: High-risk exposure detected")
		}
		return s, nil
	}, IOCState.withError)
}

func lookupRecordedFuture(ctx context.Context, sources IOCSources, s IOCState) IOCState {
	return RunStep(ctx, "lookup_recorded_future", s, func(ctx context.Context, s IOCState) (IOCState, error) {
		text, err := callSource(ctx, sources.Recovery, sources.RecordedFuture, s.IOCValue, s.IOCType)
		if err != nil {
			return s, err
		}
		s.PerSourceResult["recorded_future"] = text
		if score, ok := signals.ParseRiskScore(text); ok {
			switch {
			case score >= 80:
				s.RiskFactors = append(s.RiskFactors, "Recorded Future: Critical risk score ("+strconv.Itoa(score)+"/99)")
			case score >= 50:
				s.RiskFactors = append(s.RiskFactors, "Recorded Future: Elevated risk score ("+strconv.Itoa(score)+"/99)")
			}
		}
		return s, nil
	}, IOCState.withError)
}

func lookupQRadar(ctx context.Context, sources IOCSources, s IOCState) IOCState {
	return RunStep(ctx, "search_qradar", s, func(ctx context.Context, s IOCState) (IOCState, error) {
		text, err := callSource(ctx, sources.Recovery, sources.QRadar, s.IOCValue, s.IOCType)
		if err != nil {
			return s, err
		}
		s.PerSourceResult["qradar"] = text
		if strings.TrimSpace(text) != "" && !containsFold(text, "no results") && !containsFold(text, "n/a") {
			s.RiskFactors = append(s.RiskFactors, "QRadar: Activity detected in SIEM logs")
		}
		return s, nil
	}, IOCState.withError)
}

func synthesizeRisk(s IOCState) IOCState {
	score := 0

	vt := s.PerSourceResult["virustotal"]
	switch {
	case containsFold(vt, "high") || containsFold(vt, "malicious"):
		score += 30
	case containsFold(vt, "medium"):
		score += 15
	}

	if s.IOCType == signals.IOCTypeIP {
		abuse := s.PerSourceResult["abuseipdb"]
		switch {
		case containsFold(abuse, "high"):
			score += 25
		case containsFold(abuse, "medium"):
			score += 12
		}
	}

	shodan := s.PerSourceResult["shodan"]
	if containsFold(shodan, "cve") || containsFold(shodan, "vuln") {
		score += 15
	}
	if containsFold(shodan, "high") {
		score += 10
	}

	if rfScore, ok := signals.ParseRiskScore(s.PerSourceResult["recorded_future"]); ok {
		score += min(30, rfScore/3)
	}

	if score > 100 {
		score = 100
	}
	s.RiskScore = score
	s.RecommendedActions = recommendedActionsFor(score, s.IOCType)
	s.RiskFactors = Dedup(s.RiskFactors)
	return s
}

func recommendedActionsFor(score int, iocType signals.IOCType) []string {
	switch {
	case score >= RiskHigh:
		actions := []string{
			"IMMEDIATE: Block IOC at perimeter",
			"Escalate to incident response team",
			"Search environment for additional related indicators",
		}
		if iocType == signals.IOCTypeIP {
			actions = append(actions, "Review firewall and proxy logs for connections to this IP")
		}
		return actions
	case score >= RiskMedium:
		return []string{
			"Monitor IOC for continued activity",
			"Add to watchlist for 30 days",
			"Review related alerts in SIEM",
		}
	default:
		return []string{"No immediate action required"}
	}
}

func generateIOCReport(s IOCState) IOCState {
	var b strings.Builder
	b.WriteString("# IOC Investigation Report\n\n")
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "IOC: `%s` (%s)\n\n", s.IOCValue, s.IOCType)
	fmt.Fprintf(&b, "Risk Score: %d/100 (%s)\n\n", s.RiskScore, riskLevel(s.RiskScore))

	b.WriteString("## Risk Factors\n")
	if len(s.RiskFactors) == 0 {
		b.WriteString("- No risk factors identified\n")
	}
	for _, f := range s.RiskFactors {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\n## Enrichment Results\n")
	for _, source := range []string{"virustotal", "abuseipdb", "shodan", "recorded_future", "qradar"} {
		if text, ok := s.PerSourceResult[source]; ok {
			fmt.Fprintf(&b, "### %s\n%s\n\n", titleCase(source), text)
		}
	}

	b.WriteString("## Recommended Actions\n")
	for _, a := range s.RecommendedActions {
		fmt.Fprintf(&b, "- %s\n", a)
	}

	if len(s.Errors) > 0 {
		b.WriteString("\n## Errors During Investigation\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	s.FinalReport = b.String()
	return s
}

func riskLevel(score int) string {
	switch {
	case score >= RiskHigh:
		return "HIGH"
	case score >= RiskMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
