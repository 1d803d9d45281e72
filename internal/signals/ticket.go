package signals

import (
	"regexp"
	"strconv"
)

var (
	ticketWithKeyword = regexp.MustCompile(`(?i)(?:ticket|case|incident)\s*#?\s*(\d+)`)
	ticketBareHash    = regexp.MustCompile(`#(\d{6,})`)
)

// ExtractTicketID finds a ticket/case/incident identifier in text, first
// trying the keyword-prefixed form, then a bare "#" followed by 6+ digits.
func ExtractTicketID(text string) (string, bool) {
	if m := ticketWithKeyword.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := ticketBareHash.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// WorkflowKind names which of the two workflows a request maps to.
type WorkflowKind string

const (
	WorkflowIOC      WorkflowKind = "ioc_investigation"
	WorkflowIncident WorkflowKind = "incident_response"
	WorkflowUnknown  WorkflowKind = ""
)

var ticketKeywordRe = regexp.MustCompile(`(?i)\b(ticket|incident|case|xsoar)\b`)
var iocKeywordRe = regexp.MustCompile(`(?i)\b(investigate|analysis|analyze|enrich|lookup|check)\b`)

// DetectWorkflowKind classifies a "workflow <...>" request body: ticket
// keywords take priority over IOC keywords, which take priority over a bare
// IOC-presence fallback.
func DetectWorkflowKind(body string, internalDomains map[string]bool) WorkflowKind {
	if ticketKeywordRe.MatchString(body) {
		return WorkflowIncident
	}
	if _, ok := ExtractTicketID(body); ok {
		return WorkflowIncident
	}
	if iocKeywordRe.MatchString(body) {
		return WorkflowIOC
	}
	if _, ok := ExtractPrimaryIOC(body, internalDomains); ok {
		return WorkflowIOC
	}
	return WorkflowUnknown
}

// ParseRiskScore parses a "Risk Score: N/99" style fragment, returning N.
func ParseRiskScore(text string) (int, bool) {
	re := regexp.MustCompile(`(?i)Risk Score:\s*(\d+)\s*/\s*99`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
