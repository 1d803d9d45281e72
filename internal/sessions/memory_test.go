package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/secops-bot/engine/internal/models"
)

func TestMemoryStoreAppendBounds(t *testing.T) {
	store := NewMemoryStore(3, 4000)
	ctx := context.Background()
	key := "user_room"

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, key, models.Message{Role: models.RoleUser, Content: "msg"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.Context(ctx, key)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if n := strings.Count(got, "msg"); n != 3 {
		t.Fatalf("expected 3 retained messages, got %d (%q)", n, got)
	}
}

func TestMemoryStoreDeleteThenContextEmpty(t *testing.T) {
	store := NewMemoryStore(30, 4000)
	ctx := context.Background()
	key := "user_room"

	store.Append(ctx, key, models.Message{Role: models.RoleUser, Content: "hi"})
	ok, err := store.Delete(ctx, key)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	got, err := store.Context(ctx, key)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty context after delete, got %q", got)
	}
}

func TestMemoryStoreContextNeverSplitsMessage(t *testing.T) {
	store := NewMemoryStore(30, 20)
	ctx := context.Background()
	key := "user_room"

	store.Append(ctx, key, models.Message{Role: models.RoleUser, Content: "a short message that is long"})
	store.Append(ctx, key, models.Message{Role: models.RoleAssistant, Content: "ok"})

	got, err := store.Context(ctx, key)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if got != "" && !strings.HasPrefix(got, "user: ") && !strings.HasPrefix(got, "assistant: ") {
		t.Fatalf("context did not start at a message boundary: %q", got)
	}
}

func TestMemoryStoreSweepExpired(t *testing.T) {
	store := NewMemoryStore(30, 4000)
	ctx := context.Background()
	key := "user_room"
	store.Append(ctx, key, models.Message{Role: models.RoleUser, Content: "hi"})

	store.mu.Lock()
	store.sessions[key].LastTouchedAt = time.Now().Add(-48 * time.Hour)
	store.mu.Unlock()

	n, err := store.SweepExpired(ctx, time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept session, got %d", n)
	}
}
