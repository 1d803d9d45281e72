// Package workflow implements Workflows (spec C7): a directed graph of
// pure state-transition nodes. Per the spec, nodes execute sequentially
// within one workflow instance (no parallel nodes, to keep state merges
// unambiguous); a node that fails is recorded into the state's error list
// and execution continues to the next node.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/secops-bot/engine/internal/observability"
)

// Step runs one named node against state S, returning the updated state.
// A non-nil error is turned into a recorded error string by RunStep rather
// than aborting the workflow.
type Step[S any] func(ctx context.Context, s S) (S, error)

// RunStep executes step, and on error appends "<name>: <message>" to the
// state via recordErr, then returns the (possibly unchanged) state so the
// caller can continue to the next node.
func RunStep[S any](ctx context.Context, name string, s S, step Step[S], recordErr func(s S, msg string) S) S {
	next, err := step(ctx, s)
	if err != nil {
		return recordErr(s, fmt.Sprintf("%s: %s", name, err.Error()))
	}
	return next
}

// timeNode runs fn, recording its wall time against workflow/node in m if
// m is non-nil. Used at each RunIOCInvestigation/RunIncidentResponse call
// site rather than inside the per-node functions, since those are also
// unit-tested directly without a Metrics dependency.
func timeNode[S any](m *observability.Metrics, workflow, node string, fn func() S) S {
	start := time.Now()
	result := fn()
	if m != nil {
		m.RecordWorkflowNode(workflow, node, time.Since(start).Seconds())
	}
	return result
}

// Dedup returns a copy of items with duplicates removed, preserving the
// first-seen order (mirrors the original's list(dict.fromkeys(...))).
func Dedup(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
