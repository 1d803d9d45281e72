// Package retriever implements the Retriever capability (spec C2): hybrid
// dense + lexical document lookup returning ranked, source-attributed
// passages. Grounded on the teacher's internal/tools/rag search tool
// (JSON-schema'd Tool wrapping a Manager.Search call with deterministic
// tie-breaking), generalised here to the plain Retriever interface the
// spec names, independent of any particular Tool wiring.
package retriever

import (
	"context"
	"sort"
)

// Passage is one ranked retrieval hit.
type Passage struct {
	Text       string
	SourceName string
	Score      float64
}

// Retriever is the capability consumed by the dispatch engine; indexing,
// chunking, and persistence live outside the core.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

const (
	denseWeight  = 0.65
	lexicalWeight = 0.35
)

// Document is one corpus entry the InMemory retriever searches over.
type Document struct {
	ID     string
	Text   string
	Source string
}

// InMemory is a deterministic Retriever used by tests and as a fallback
// when no external vector index is configured. It blends a trivial dense
// proxy score (token overlap) with a lexical substring score at the fixed
// 0.65/0.35 weights the spec mandates; a real deployment replaces Search's
// scoring with an actual embedding index while keeping the same weights.
type InMemory struct {
	docs []Document
}

// NewInMemory builds a retriever over a fixed document set.
func NewInMemory(docs []Document) *InMemory {
	return &InMemory{docs: docs}
}

func (r *InMemory) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 5
	}
	type scored struct {
		Passage
		id string
	}
	queryTokens := tokenize(query)

	results := make([]scored, 0, len(r.docs))
	for _, d := range r.docs {
		dense := overlapScore(queryTokens, tokenize(d.Text))
		lexical := substringScore(query, d.Text)
		score := denseWeight*dense + lexicalWeight*lexical
		if score <= 0 {
			continue
		}
		results = append(results, scored{
			Passage: Passage{Text: d.Text, SourceName: d.Source, Score: score},
			id:      d.ID,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].id < results[j].id
	})

	if len(results) > k {
		results = results[:k]
	}
	out := make([]Passage, len(results))
	for i, r := range results {
		out[i] = r.Passage
	}
	return out, nil
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) > 0 {
			out[string(word)] = true
			word = word[:0]
		}
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			word = append(word, toLower(r))
		} else {
			flush()
		}
	}
	flush()
	return out
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func overlapScore(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if doc[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func substringScore(query, text string) float64 {
	qt := tokenize(query)
	if len(qt) == 0 {
		return 0
	}
	lowerText := toLowerString(text)
	hits := 0
	for t := range qt {
		if contains(lowerText, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(qt))
}

func toLowerString(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, toLower(r))
	}
	return string(out)
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
