package router

import "testing"

func newTestRouter() *Router {
	return New([]string{"pokedex", "bot"}, nil)
}

func TestClassifyHelp(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("help")
	if c.Kind != KindHelp {
		t.Fatalf("expected help, got %s", c.Kind)
	}
}

func TestClassifyGreeting(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("status")
	if c.Kind != KindGreeting {
		t.Fatalf("expected greeting, got %s", c.Kind)
	}
}

func TestClassifySessionClear(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("please reset our conversation")
	if c.Kind != KindSessionClear {
		t.Fatalf("expected session_clear, got %s", c.Kind)
	}
}

func TestClassifySessionClearFreshPhrase(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("let's start fresh please")
	if c.Kind != KindSessionClear {
		t.Fatalf("expected session_clear via fresh phrase, got %s", c.Kind)
	}
}

func TestClassifyTipper(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("tipper 12345")
	if c.Kind != KindTipper || c.TipperID != "12345" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyTipperWithHash(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("analyze tipper #999")
	if c.Kind != KindTipper || c.TipperID != "999" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyRulesExcludesReservedWords(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("rules sync")
	if c.Kind == KindRules {
		t.Fatalf("expected 'rules sync' not to match rules command")
	}
}

func TestClassifyRules(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("rules search lateral movement")
	if c.Kind != KindRules || c.RulesQuery != "lateral movement" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyContacts(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("contacts major incident management EMEA")
	if c.Kind != KindContacts || c.ContactsQuery != "major incident management EMEA" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyExecsum(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("execsum 929947")
	if c.Kind != KindExecsum || c.ExecsumTicketID != "929947" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyExecsumRequiresNumericID(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("execsum please")
	if c.Kind == KindExecsum {
		t.Fatalf("expected non-numeric execsum argument not to match, got %+v", c)
	}
}

func TestClassifyFalcon(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("falcon isolate host ABC123")
	if c.Kind != KindFalcon || c.FalconQuery != "isolate host ABC123" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyWorkflowIOC(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("workflow investigate 8.8.8.8")
	if c.Kind != KindWorkflow || c.WorkflowKind != "ioc_investigation" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyWorkflowIncident(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("workflow incident response for ticket 929947")
	if c.Kind != KindWorkflow || c.WorkflowKind != "incident_response" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassifyFreeFormFallback(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("what is the weather like today")
	if c.Kind != KindFreeForm {
		t.Fatalf("expected freeform, got %s", c.Kind)
	}
}

func TestPreprocessStripsBotAlias(t *testing.T) {
	r := newTestRouter()
	c := r.Classify("hey bot, status")
	if c.CleanedText == "" {
		t.Fatal("expected cleaned text")
	}
	if c.Kind != KindGreeting {
		t.Fatalf("expected greeting after alias strip, got %s (%q)", c.Kind, c.CleanedText)
	}
}
