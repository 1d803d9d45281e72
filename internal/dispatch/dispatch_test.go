package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/secops-bot/engine/internal/llm"
	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/recovery"
	"github.com/secops-bot/engine/internal/router"
	"github.com/secops-bot/engine/internal/sessions"
	"github.com/secops-bot/engine/internal/toolloop"
	"github.com/secops-bot/engine/internal/toolregistry"
	"github.com/secops-bot/engine/internal/toolsimpl"
	"github.com/secops-bot/engine/internal/workflow"
)

type fakeLLM struct{ content string }

func (f *fakeLLM) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	return llm.Result{Content: f.content}, nil
}

func newTestDispatcher(t *testing.T, llmContent string) *Dispatcher {
	t.Helper()
	r := router.New([]string{"bot"}, nil)
	store := sessions.NewMemoryStore(30, 4000)
	reg := toolregistry.New()
	reg.Seal()
	rec := recovery.New(time.Hour, slog.Default())
	loop := toolloop.New(&fakeLLM{content: llmContent}, reg, rec)

	return New(r, store, loop, workflow.IOCSources{Recovery: rec}, workflow.IncidentSources{Recovery: rec}, nil, 24*time.Hour, 0, slog.Default())
}

func TestAskRejectsEmptyText(t *testing.T) {
	d := newTestDispatcher(t, "hi")
	if _, err := d.Ask(context.Background(), "u1", "r1", "   "); err != ErrEmptyText {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestAskHelpFastPath(t *testing.T) {
	d := newTestDispatcher(t, "unused")
	res, err := d.Ask(context.Background(), "u1", "r1", "help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Metrics.TotalTokens() != 0 {
		t.Fatalf("expected zero metrics for fast path, got %+v", res.Metrics)
	}
}

func TestAskGreetingFastPath(t *testing.T) {
	d := newTestDispatcher(t, "unused")
	res, err := d.Ask(context.Background(), "u1", "r1", "status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "System online and ready" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestAskSessionClear(t *testing.T) {
	d := newTestDispatcher(t, "unused")
	ctx := context.Background()
	if _, err := d.Ask(ctx, "u1", "r1", "status"); err != nil {
		t.Fatal(err)
	}
	res, err := d.Ask(ctx, "u1", "r1", "please clear our conversation")
	if err != nil {
		t.Fatal(err)
	}
	if res.Content == "" {
		t.Fatal("expected a confirmation message")
	}
}

func TestAskFreeFormAppendsSessionTurns(t *testing.T) {
	d := newTestDispatcher(t, "here is your answer")
	ctx := context.Background()

	res, err := d.Ask(ctx, "u1", "r1", "what's the weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "here is your answer" {
		t.Fatalf("unexpected content: %q", res.Content)
	}

	key := models.SessionKey("u1", "r1")
	convo, err := d.Sessions.Context(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if convo == "" {
		t.Fatal("expected session turns to have been appended")
	}
}

func TestAskWorkflowNoIOCReturnsHelp(t *testing.T) {
	d := newTestDispatcher(t, "unused")
	res, err := d.Ask(context.Background(), "u1", "r1", "workflow help")
	if err != nil {
		t.Fatal(err)
	}
	if res.Content == "" {
		t.Fatal("expected workflow help text")
	}
}

// TestAskTipperInvokesToolOnce covers spec §8 scenario 4: the tipper
// command must call a Tool exactly once and the final text must contain a
// linkified `[#12345](<url>)` reference.
func TestAskTipperInvokesToolOnce(t *testing.T) {
	d := newTestDispatcher(t, "unused")
	var calls int
	d.Tipper = toolsimpl.NewStub("tipper_lookup", "test tipper", models.ToolClassTipper, nil)
	d.Tipper.(*toolsimpl.Stub).InvokeFunc = func(ctx context.Context, args json.RawMessage) (string, string, error) {
		calls++
		var in struct {
			TipperID string `json:"tipper_id"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			t.Fatalf("decode tool args: %v", err)
		}
		return "[#" + in.TipperID + "](https://dev.azure.com/org/project/_workitems/edit/" + in.TipperID + ")", "", nil
	}

	res, err := d.Ask(context.Background(), "u1", "r1", "tipper 12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one tool invocation, got %d", calls)
	}
	if !strings.Contains(res.Content, "[#12345](") {
		t.Fatalf("expected linkified tipper reference, got %q", res.Content)
	}
}

func TestAskTipperNotConfiguredFallsBack(t *testing.T) {
	d := newTestDispatcher(t, "unused")
	res, err := d.Ask(context.Background(), "u1", "r1", "tipper 12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Content, "not wired") {
		t.Fatalf("expected not-wired fallback message, got %q", res.Content)
	}
}

func TestAskContactsInvokesTool(t *testing.T) {
	d := newTestDispatcher(t, "unused")
	var calls int
	stub := toolsimpl.NewStub("contacts_lookup", "test contacts", models.ToolClassContacts, nil)
	stub.InvokeFunc = func(ctx context.Context, args json.RawMessage) (string, string, error) {
		calls++
		return "📇 Contacts for 'EMEA'\n\n- Jane Doe | jane@example.com\n", "", nil
	}
	d.Contacts = stub

	res, err := d.Ask(context.Background(), "u1", "r1", "contacts EMEA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one tool invocation, got %d", calls)
	}
	if !strings.Contains(res.Content, "Jane Doe") {
		t.Fatalf("expected contact in output, got %q", res.Content)
	}
}

func TestAskFalconRoomAllowlistRejectsUnapprovedRoom(t *testing.T) {
	d := newTestDispatcher(t, "free-form answer")
	d.FalconApprovedRooms = map[string]bool{"approved-room": true}

	res, err := d.Ask(context.Background(), "u1", "unapproved-room", "falcon show device status for host1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "" {
		t.Fatalf("expected a silent no-op for an unapproved room, got %q", res.Content)
	}
}

func TestAskFalconRoomAllowlistAllowsApprovedRoom(t *testing.T) {
	d := newTestDispatcher(t, "free-form answer")
	d.FalconApprovedRooms = map[string]bool{"approved-room": true}

	res, err := d.Ask(context.Background(), "u1", "approved-room", "falcon show device status for host1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "free-form answer" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}
