// Package dispatch implements the Dispatcher (spec C9): the top-level
// Ask(userID, roomID, text) entry point that wires Router, SessionStore,
// ToolLoop, and the two workflows together. Grounded on the teacher's
// agent-orchestration entry points (internal/agent), generalised to the
// fixed fast-path/workflow/free-form routing this spec names.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/secops-bot/engine/internal/llm"
	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/observability"
	"github.com/secops-bot/engine/internal/router"
	"github.com/secops-bot/engine/internal/sessions"
	"github.com/secops-bot/engine/internal/signals"
	"github.com/secops-bot/engine/internal/toolloop"
	"github.com/secops-bot/engine/internal/workflow"
)

// ErrEmptyText is returned when Ask is called with blank input.
var ErrEmptyText = errors.New("dispatch: text must not be empty")

// slowResponseThreshold is the elapsed-time boundary past which Ask logs a
// warning, per spec §4.9 step 8.
const slowResponseThreshold = 25 * time.Second

// Dispatcher is the process-wide orchestration entry point.
type Dispatcher struct {
	Router        *router.Router
	Sessions      sessions.Store
	ToolLoop      *toolloop.Loop
	IOCSources    workflow.IOCSources
	IncidentSrc   workflow.IncidentSources
	InternalDoms  map[string]bool
	SessionTTL    time.Duration
	SweepInterval time.Duration
	Log           *slog.Logger
	Metrics       *observability.Metrics // optional; nil disables recording

	Tipper   models.Tool // optional; nil disables tool-backed tipper lookups
	Contacts models.Tool // optional; nil disables tool-backed contacts lookups

	// FalconApprovedRooms gates KindFalcon specifically, on top of the
	// chat adapter's own Filter.ApprovedRooms (spec §9's room allowlist
	// for EDR commands). nil/empty means no additional restriction.
	FalconApprovedRooms map[string]bool

	lastSweep time.Time
}

// New builds a Dispatcher from its wired dependencies.
func New(r *router.Router, store sessions.Store, loop *toolloop.Loop, iocSrc workflow.IOCSources, incSrc workflow.IncidentSources, internalDomains map[string]bool, sessionTTL, sweepInterval time.Duration, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		Router: r, Sessions: store, ToolLoop: loop,
		IOCSources: iocSrc, IncidentSrc: incSrc, InternalDoms: internalDomains,
		SessionTTL: sessionTTL, SweepInterval: sweepInterval, Log: log,
	}
}

// Ask is the engine's single entry point: classify, route, and respond.
func (d *Dispatcher) Ask(ctx context.Context, userID, roomID, text string) (models.Result, error) {
	start := time.Now()
	route := "unknown"
	outcome := "ok"
	defer func() {
		if elapsed := time.Since(start); elapsed > slowResponseThreshold {
			d.Log.Warn("dispatch: slow response", "user_id", userID, "room_id", roomID, "elapsed_seconds", elapsed.Seconds())
		}
		if d.Metrics != nil {
			d.Metrics.RecordDispatch(route, outcome, time.Since(start).Seconds())
		}
	}()

	if strings.TrimSpace(text) == "" {
		outcome = "rejected"
		return models.Result{}, ErrEmptyText
	}

	key := models.SessionKey(userID, roomID)
	d.opportunisticSweep(ctx)

	classification := d.Router.Classify(text)
	route = string(classification.Kind)
	d.Log.Info("dispatch: classified", "session_key", key, "kind", classification.Kind)

	var result models.Result
	var err error
	switch classification.Kind {
	case router.KindHelp:
		result, err = d.reply(ctx, key, text, router.HelpText())
	case router.KindGreeting:
		result, err = d.reply(ctx, key, text, "System online and ready")
	case router.KindSessionClear:
		existed, delErr := d.Sessions.Delete(ctx, key)
		if delErr != nil {
			d.Log.Warn("dispatch: session delete failed", "session_key", key, "error", delErr)
		}
		msg := "Starting a fresh conversation."
		if !existed {
			msg = "There was nothing to clear, but we're starting fresh."
		}
		result = models.Result{Content: msg}
	case router.KindTipper:
		content := d.runToolCommand(ctx, d.Tipper, classification.TipperID,
			map[string]string{"tipper_id": classification.TipperID},
			fmt.Sprintf("Tipper #%s: lookup is not wired to a tipper tool in this deployment.", classification.TipperID))
		result, err = d.reply(ctx, key, text, content)
	case router.KindRules:
		result = models.Result{Content: fmt.Sprintf("Searching detection rules for %q is not wired to a rules backend in this deployment.", classification.RulesQuery)}
	case router.KindContacts:
		content := d.runToolCommand(ctx, d.Contacts, classification.ContactsQuery,
			map[string]string{"query": classification.ContactsQuery},
			fmt.Sprintf("Contacts lookup for %q is not wired to a contacts directory in this deployment.", classification.ContactsQuery))
		result, err = d.reply(ctx, key, text, content)
	case router.KindExecsum:
		state := workflow.RunIncidentResponse(ctx, d.IncidentSrc, classification.ExecsumTicketID, text, d.InternalDoms)
		result, err = d.reply(ctx, key, text, state.ExecutiveSummary)
	case router.KindFalcon:
		if !d.falconAllowed(roomID) {
			outcome = "rejected"
			d.Log.Info("dispatch: falcon command rejected, room not approved", "room_id", roomID)
			return models.Result{}, nil
		}
		result, err = d.runFreeForm(ctx, key, classification.FalconQuery)
	case router.KindWorkflow:
		result, err = d.runWorkflow(ctx, key, text, classification)
	default:
		result, err = d.runFreeForm(ctx, key, text)
	}
	if err != nil {
		outcome = "error"
	}
	return result, err
}

func (d *Dispatcher) reply(ctx context.Context, key, userText, content string) (models.Result, error) {
	if err := d.Sessions.Append(ctx, key, models.Message{Role: models.RoleUser, Content: userText, CreatedAt: time.Now()}); err != nil {
		d.Log.Warn("dispatch: session append failed", "session_key", key, "error", err)
	}
	if err := d.Sessions.Append(ctx, key, models.Message{Role: models.RoleAssistant, Content: content, CreatedAt: time.Now()}); err != nil {
		d.Log.Warn("dispatch: session append failed", "session_key", key, "error", err)
	}
	return models.Result{Content: content}, nil
}

// runToolCommand invokes tool through ErrorRecovery exactly once and
// returns the resulting text, falling back to a fixed notConfigured
// message when tool is nil (no tool wired for this deployment) and to
// ErrorRecovery's own fallback text when the call fails or the class is
// circuit-broken.
func (d *Dispatcher) runToolCommand(ctx context.Context, tool models.Tool, hint string, args map[string]string, notConfigured string) string {
	if tool == nil {
		return notConfigured
	}
	rec := d.ToolLoop.Recovery
	if !rec.Available(tool.Class()) {
		return rec.Fallback(tool.Class(), hint)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return rec.Fallback(tool.Class(), hint)
	}
	result, err := rec.Run(ctx, tool.Class(), func(ctx context.Context) (string, error) {
		return invokeTool(ctx, tool, encoded)
	})
	if err != nil {
		return rec.Fallback(tool.Class(), hint)
	}
	return result
}

func invokeTool(ctx context.Context, tool models.Tool, args json.RawMessage) (string, error) {
	text, _, err := tool.Invoke(ctx, args)
	return text, err
}

// falconAllowed reports whether roomID may run Falcon/EDR commands. An
// empty FalconApprovedRooms means no additional restriction on top of the
// chat adapter's own Filter.ApprovedRooms.
func (d *Dispatcher) falconAllowed(roomID string) bool {
	if len(d.FalconApprovedRooms) == 0 {
		return true
	}
	return d.FalconApprovedRooms[roomID]
}

func (d *Dispatcher) runWorkflow(ctx context.Context, key, originalText string, c router.Classification) (models.Result, error) {
	var content string
	switch c.WorkflowKind {
	case signals.WorkflowIOC:
		state := workflow.RunIOCInvestigation(ctx, d.IOCSources, c.WorkflowBody, d.InternalDoms)
		content = state.FinalReport
	case signals.WorkflowIncident:
		ticketID, _ := signals.ExtractTicketID(c.WorkflowBody)
		state := workflow.RunIncidentResponse(ctx, d.IncidentSrc, ticketID, c.WorkflowBody, d.InternalDoms)
		content = state.ExecutiveSummary
	default:
		content = router.WorkflowHelpText()
	}

	if err := d.Sessions.Append(ctx, key, models.Message{Role: models.RoleUser, Content: originalText, CreatedAt: time.Now()}); err != nil {
		d.Log.Warn("dispatch: session append failed", "session_key", key, "error", err)
	}
	if err := d.Sessions.Append(ctx, key, models.Message{Role: models.RoleAssistant, Content: content, CreatedAt: time.Now()}); err != nil {
		d.Log.Warn("dispatch: session append failed", "session_key", key, "error", err)
	}
	return models.Result{Content: content}, nil
}

func (d *Dispatcher) runFreeForm(ctx context.Context, key, userText string) (models.Result, error) {
	convoContext, err := d.Sessions.Context(ctx, key)
	if err != nil {
		d.Log.Warn("dispatch: session context load failed", "session_key", key, "error", err)
	}

	prompt := userText
	if convoContext != "" {
		prompt = convoContext + " " + userText
	}

	content, metrics, err := d.ToolLoop.Run(ctx, defaultSystemPrompt, []llm.Message{{Role: models.RoleUser, Content: prompt}})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return models.Result{Metrics: models.Metrics{InputTokens: metrics.InputTokens, OutputTokens: metrics.OutputTokens}}, fmt.Errorf("dispatch: cancelled: %w", ctx.Err())
		}
		d.Log.Error("dispatch: free-form path failed", "session_key", key, "error", err)
		return models.Result{}, fmt.Errorf("dispatch: free-form: %w", err)
	}

	if err := d.Sessions.Append(ctx, key, models.Message{Role: models.RoleUser, Content: userText, CreatedAt: time.Now()}); err != nil {
		d.Log.Warn("dispatch: session append failed", "session_key", key, "error", err)
	}
	if err := d.Sessions.Append(ctx, key, models.Message{Role: models.RoleAssistant, Content: content, CreatedAt: time.Now()}); err != nil {
		d.Log.Warn("dispatch: session append failed", "session_key", key, "error", err)
	}

	return models.Result{Content: content, Metrics: metrics}, nil
}

func (d *Dispatcher) opportunisticSweep(ctx context.Context) {
	if d.SweepInterval <= 0 {
		return
	}
	now := time.Now()
	if !d.lastSweep.IsZero() && now.Sub(d.lastSweep) < d.SweepInterval {
		return
	}
	d.lastSweep = now
	n, err := d.Sessions.SweepExpired(ctx, now, d.SessionTTL)
	if err != nil {
		d.Log.Warn("dispatch: sweep failed", "error", err)
		return
	}
	if n > 0 {
		d.Log.Info("dispatch: swept expired sessions", "count", n)
	}
}

const defaultSystemPrompt = "You are a SecOps assistant. Use the available tools when a question needs live data; otherwise answer directly and concisely."
