// Package router implements Router (spec C8): classifies an incoming
// message into one of the fixed handler kinds, in priority order. Grounded
// on the original Python router.py's exact precedence (workflow prefix >
// help > tipper > rules > contacts > execsum > falcon/EDR > session-clear >
// greeting > free-form) and on the teacher's internal/commands parser for
// the regex-driven command-grammar idiom.
package router

import (
	"regexp"
	"strings"

	"github.com/secops-bot/engine/internal/signals"
)

// Kind names which handler a Classification selects.
type Kind string

const (
	KindWorkflow     Kind = "workflow"
	KindHelp         Kind = "help"
	KindTipper       Kind = "tipper"
	KindRules        Kind = "rules"
	KindContacts     Kind = "contacts"
	KindExecsum      Kind = "execsum"
	KindFalcon       Kind = "falcon"
	KindSessionClear Kind = "session_clear"
	KindGreeting     Kind = "greeting"
	KindFreeForm     Kind = "freeform"
)

// Classification is the router's decision for one message.
type Classification struct {
	Kind            Kind
	CleanedText     string
	WorkflowKind    signals.WorkflowKind
	WorkflowBody    string
	TipperID        string
	RulesQuery      string
	ContactsQuery   string
	ExecsumTicketID string
	FalconQuery     string
}

// helpPhrases is the closed list of exact/prefix/suffix help triggers.
var helpPhrases = []string{
	"help",
	"help me",
	"how do i use this",
	"how do i use you",
	"how does this work",
	"what can you do",
	"what can i do",
	"usage",
	"instructions",
	"commands",
	"what are your commands",
	"show me what you can do",
}

var sessionClearActionKeywords = []string{"clear", "reset", "delete", "forget", "erase", "remove"}
var sessionClearTargetKeywords = []string{"conversation", "chat", "history", "session", "context", "messages", "memory", "talked"}
var sessionClearFreshPhrases = []string{
	"start fresh", "start a new session", "new conversation", "begin again",
	"start over", "fresh start", "new session", "reset conversation", "let's start over",
}

var greetingFastPaths = map[string]bool{
	"hi": true, "status": true, "health": true, "are you working": true,
}

var (
	tipperRe   = regexp.MustCompile(`(?i)^(?:analyze\s+)?tipper\s+#?(\d+)$`)
	rulesRe    = regexp.MustCompile(`(?i)^rules?\s+(?:search\s+)?(.+)$`)
	contactsRe = regexp.MustCompile(`(?i)^contacts\s+(.+)$`)
	execsumRe  = regexp.MustCompile(`(?i)^execsum\s+(\d+)$`)
)

var rulesReservedWords = map[string]bool{"sync": true, "stats": true}

var falconPrefixes = []string{"falcon ", "crowdstrike ", "cs "}

// Router classifies messages per spec §4.8.
type Router struct {
	BotAliases      []string
	InternalDomains map[string]bool
}

// New builds a Router.
func New(botAliases []string, internalDomains map[string]bool) *Router {
	return &Router{BotAliases: botAliases, InternalDomains: internalDomains}
}

// Classify applies the priority-ordered rules to raw text.
func (r *Router) Classify(raw string) Classification {
	cleaned := r.preprocess(raw)
	trimmed := strings.TrimSpace(cleaned)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(lower, "workflow ") {
		body := strings.TrimSpace(trimmed[len("workflow "):])
		kind := signals.DetectWorkflowKind(body, r.InternalDomains)
		return Classification{Kind: KindWorkflow, CleanedText: cleaned, WorkflowKind: kind, WorkflowBody: body}
	}

	if isHelpPhrase(lower) {
		return Classification{Kind: KindHelp, CleanedText: cleaned}
	}

	if m := tipperRe.FindStringSubmatch(trimmed); m != nil {
		return Classification{Kind: KindTipper, CleanedText: cleaned, TipperID: m[1]}
	}

	if m := rulesRe.FindStringSubmatch(trimmed); m != nil && !rulesReservedWords[strings.ToLower(strings.TrimSpace(m[1]))] {
		return Classification{Kind: KindRules, CleanedText: cleaned, RulesQuery: strings.TrimSpace(m[1])}
	}

	if m := contactsRe.FindStringSubmatch(trimmed); m != nil {
		return Classification{Kind: KindContacts, CleanedText: cleaned, ContactsQuery: strings.TrimSpace(m[1])}
	}

	if m := execsumRe.FindStringSubmatch(trimmed); m != nil {
		return Classification{Kind: KindExecsum, CleanedText: cleaned, ExecsumTicketID: m[1]}
	}

	for _, prefix := range falconPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return Classification{Kind: KindFalcon, CleanedText: cleaned, FalconQuery: strings.TrimSpace(trimmed[len(prefix):])}
		}
	}

	if isSessionClear(lower) {
		return Classification{Kind: KindSessionClear, CleanedText: cleaned}
	}

	if greetingFastPaths[lower] {
		return Classification{Kind: KindGreeting, CleanedText: cleaned}
	}

	return Classification{Kind: KindFreeForm, CleanedText: cleaned}
}

// preprocess strips known bot-name aliases (case-insensitive whole-word)
// then collapses whitespace and leading/trailing commas.
func (r *Router) preprocess(raw string) string {
	text := raw
	for _, alias := range r.BotAliases {
		if alias == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `\b`)
		text = re.ReplaceAllString(text, "")
	}
	text = strings.Join(strings.Fields(text), " ")
	text = strings.Trim(text, ", ")
	return text
}

func isHelpPhrase(lower string) bool {
	for _, phrase := range helpPhrases {
		if lower == phrase {
			return true
		}
		if strings.HasPrefix(lower, phrase+" ") {
			return true
		}
		if strings.HasSuffix(lower, " "+phrase) {
			return true
		}
	}
	return false
}

func isSessionClear(lower string) bool {
	for _, phrase := range sessionClearFreshPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	hasAction := false
	for _, kw := range sessionClearActionKeywords {
		if strings.Contains(lower, kw) {
			hasAction = true
			break
		}
	}
	if !hasAction {
		return false
	}
	for _, kw := range sessionClearTargetKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HelpText returns the in-chat help response, per spec's help-command
// contract (§8 scenario 1: must contain "Commands").
func HelpText() string {
	return `## Commands

- help — show this message
- tipper <id> — look up a tipper ticket
- rules <query> — search detection rules
- contacts <query> — look up SOC contacts
- execsum <ticketID> — generate an executive summary for a ticket
- falcon <free-form> — EDR free-form query (room-restricted)

## Workflow Command

- workflow investigate <IOC> — run the IOC investigation workflow
- workflow incident response for ticket <N> — run the incident response workflow
- workflow help — show workflow usage
`
}

// WorkflowHelpText is returned when "workflow " is used but neither a
// ticket identifier nor an IOC could be identified in the remainder.
func WorkflowHelpText() string {
	return `## 🔄 Workflow Command

Usage:
- workflow investigate <IP|domain|hash|URL>
- workflow incident response for ticket <N>

| Workflow | Trigger | Output |
|---|---|---|
| IOC Investigation | an indicator (IP/domain/hash/URL) | risk-scored enrichment report |
| Incident Response | a ticket/case/incident number | severity-scored executive summary |
`
}
