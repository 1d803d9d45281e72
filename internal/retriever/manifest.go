package retriever

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest describes an on-disk knowledge-base corpus for the InMemory
// retriever: a flat list of source files to load relative to the manifest's
// own directory. Grounded on the retrieval-pack convention of shipping a
// small corpus manifest alongside the documents it indexes.
type Manifest struct {
	Sources []ManifestSource `toml:"source"`
}

// ManifestSource names one document to load into the corpus.
type ManifestSource struct {
	ID   string `toml:"id"`
	Path string `toml:"path"`
	Name string `toml:"name"`
}

// LoadManifest reads a TOML corpus manifest and the document bodies it
// references, returning a ready InMemory retriever.
func LoadManifest(path string) (*InMemory, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("retriever: decode manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	docs := make([]Document, 0, len(m.Sources))
	for _, src := range m.Sources {
		if src.ID == "" || src.Path == "" {
			return nil, fmt.Errorf("retriever: manifest %s has a source missing id or path", path)
		}
		full := src.Path
		if !filepath.IsAbs(full) {
			full = filepath.Join(base, full)
		}
		body, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("retriever: read source %s: %w", src.ID, err)
		}
		name := src.Name
		if name == "" {
			name = src.ID
		}
		docs = append(docs, Document{ID: src.ID, Text: string(body), Source: name})
	}
	return NewInMemory(docs), nil
}
