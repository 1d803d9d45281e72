package chatadapter

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/secops-bot/engine/internal/models"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	edits    []string
	attached []string
	nextID   int
}

func (f *fakeTransport) SendMessage(ctx context.Context, roomID, parentID, text string, markdown bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, text)
	return "msg-" + strconv.Itoa(f.nextID), nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, roomID, messageID, text string, markdown bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) AttachFile(ctx context.Context, roomID, messageID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, path)
	return nil
}

type fakeAsker struct {
	result models.Result
	err    error
}

func (f *fakeAsker) Ask(ctx context.Context, userID, roomID, text string) (models.Result, error) {
	return f.result, f.err
}

func TestHandleEventFiltersBotMessages(t *testing.T) {
	transport := &fakeTransport{}
	asker := &fakeAsker{result: models.Result{Content: "hi"}}
	filter := Filter{BotSenderEmails: map[string]bool{"bot@example.com": true}}
	a := New(transport, asker, filter, Config{}, nil)

	a.HandleEvent(context.Background(), InboundEvent{RoomID: "r1", MessageID: "m1", SenderEmail: "bot@example.com", SenderType: "person", Verb: "post"}, "u1")

	if len(transport.sent) != 0 {
		t.Fatalf("expected no messages sent for filtered bot sender, got %d", len(transport.sent))
	}
}

func TestHandleEventPostsThinkingThenReply(t *testing.T) {
	transport := &fakeTransport{}
	asker := &fakeAsker{result: models.Result{Content: "the answer", Metrics: models.Metrics{InputTokens: 10, OutputTokens: 20, GenTime: 2}}}
	a := New(transport, asker, Filter{}, Config{ThinkingInterval: time.Hour}, nil)

	a.HandleEvent(context.Background(), InboundEvent{RoomID: "r1", MessageID: "m1", SenderType: "person", Verb: "post", Text: "what's up"}, "u1")

	if len(transport.sent) != 2 {
		t.Fatalf("expected 2 sent messages (thinking + reply), got %d: %+v", len(transport.sent), transport.sent)
	}
	if transport.sent[1] != "the answer" {
		t.Fatalf("expected final reply to carry dispatcher content, got %q", transport.sent[1])
	}
	if len(transport.edits) == 0 {
		t.Fatal("expected a completion edit on the thinking message")
	}
	if !strings.Contains(transport.edits[len(transport.edits)-1], "tok/s") {
		t.Fatalf("expected completion line to include token speed, got %q", transport.edits[len(transport.edits)-1])
	}
}

func TestHandleEventAttachesArtifact(t *testing.T) {
	transport := &fakeTransport{}
	asker := &fakeAsker{result: models.Result{Content: "see attached", ArtifactPath: "/tmp/report.md"}}
	a := New(transport, asker, Filter{}, Config{ThinkingInterval: time.Hour}, nil)

	a.HandleEvent(context.Background(), InboundEvent{RoomID: "r1", MessageID: "m1", SenderType: "person", Verb: "post"}, "u1")

	if len(transport.attached) != 1 || transport.attached[0] != "/tmp/report.md" {
		t.Fatalf("expected artifact attached, got %+v", transport.attached)
	}
}

func TestHandleEventDispatchErrorPostsApology(t *testing.T) {
	transport := &fakeTransport{}
	asker := &fakeAsker{err: context.DeadlineExceeded}
	a := New(transport, asker, Filter{}, Config{ThinkingInterval: time.Hour}, nil)

	a.HandleEvent(context.Background(), InboundEvent{RoomID: "r1", MessageID: "m1", SenderType: "person", Verb: "post"}, "u1")

	if len(transport.sent) != 1 {
		t.Fatalf("expected only the thinking message sent, got %d", len(transport.sent))
	}
	if len(transport.edits) != 1 || !strings.Contains(transport.edits[0], "wrong") {
		t.Fatalf("expected apology edit, got %+v", transport.edits)
	}
}

func TestTruncateAddsSuffix(t *testing.T) {
	long := strings.Repeat("a", 100)
	out := truncate(long, 20)
	if len(out) > 20 {
		t.Fatalf("expected truncated output within bound, got len %d", len(out))
	}
	if !strings.Contains(out, "truncated") {
		t.Fatalf("expected truncation suffix, got %q", out)
	}
}

func TestFilterApprovedDomains(t *testing.T) {
	f := Filter{ApprovedDomains: map[string]bool{"corp.example.com": true}}
	allowed := InboundEvent{SenderEmail: "alice@corp.example.com", SenderType: "person", Verb: "post"}
	denied := InboundEvent{SenderEmail: "eve@evil.com", SenderType: "person", Verb: "post"}
	if !f.Allow(allowed) {
		t.Fatal("expected approved-domain sender to be allowed")
	}
	if f.Allow(denied) {
		t.Fatal("expected non-approved-domain sender to be denied")
	}
}
