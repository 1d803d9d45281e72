package retriever

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "playbook.md")
	if err := os.WriteFile(docPath, []byte("Isolate the host via EDR before further triage."), 0o644); err != nil {
		t.Fatal(err)
	}
	manifestPath := filepath.Join(dir, "manifest.toml")
	manifestBody := `
[[source]]
id = "playbook"
path = "playbook.md"
name = "IR Playbook"
`
	if err := os.WriteFile(manifestPath, []byte(manifestBody), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	results, err := r.Search(context.Background(), "isolate host", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one passage")
	}
	if results[0].SourceName != "IR Playbook" {
		t.Fatalf("expected source name IR Playbook, got %q", results[0].SourceName)
	}
}

func TestLoadManifestMissingPath(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.toml")
	if err := os.WriteFile(manifestPath, []byte("[[source]]\nid = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(manifestPath); err == nil {
		t.Fatal("expected error for source missing path")
	}
}
