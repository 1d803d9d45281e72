package toolsimpl

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestTipperInvokeLinkifiesID(t *testing.T) {
	tool := NewTipper("https://dev.azure.com/org/project")
	args, _ := json.Marshal(map[string]string{"tipper_id": "12345"})

	text, artifact, err := tool.Invoke(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact != "" {
		t.Fatalf("expected no artifact, got %q", artifact)
	}
	want := "[#12345](https://dev.azure.com/org/project/_workitems/edit/12345)"
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
}

func TestTipperInvokeRejectsMissingID(t *testing.T) {
	tool := NewTipper("https://dev.azure.com/org/project")
	_, _, err := tool.Invoke(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error for a missing tipper_id")
	}
	if !strings.Contains(err.Error(), "tipper_id") {
		t.Fatalf("expected error to mention tipper_id, got %v", err)
	}
}
