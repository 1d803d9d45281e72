// Package chatadapter implements ChatAdapter (spec C10): it bridges an
// external chat platform's event stream with the Dispatcher and renders
// the thinking/progress/final-message lifecycle. Concrete transports
// (Slack, Discord) live in subpackages and implement Transport; this file
// holds the transport-agnostic lifecycle, grounded on the teacher's
// internal/typing progress-indicator controller generalised from
// "typing" to "thinking message edited on an interval".
package chatadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/secops-bot/engine/internal/models"
)

// InboundEvent is one inbound chat message, platform-neutral.
type InboundEvent struct {
	RoomID      string
	MessageID   string
	ParentID    string // empty if this message starts a new thread
	Text        string
	SenderEmail string
	SenderType  string // "person" or "bot"/"system"
	Verb        string // "post", "edit", "reaction", ...
	Timestamp   time.Time
}

// Transport is the ChatTransport capability (spec §6): send/edit threaded
// messages and optionally attach files.
type Transport interface {
	SendMessage(ctx context.Context, roomID, parentID, text string, markdown bool) (string, error)
	EditMessage(ctx context.Context, roomID, messageID, text string, markdown bool) error
	AttachFile(ctx context.Context, roomID, messageID, path string) error
}

// Asker is the subset of Dispatcher the adapter depends on.
type Asker interface {
	Ask(ctx context.Context, userID, roomID, text string) (models.Result, error)
}

// Listener is implemented by transports that can subscribe to a platform's
// live event stream (Slack Socket Mode, Discord gateway) and push
// InboundEvents to handle until ctx is cancelled. Not every Transport needs
// one: a deployment can also feed HandleEvent from a webhook receiver.
type Listener interface {
	Listen(ctx context.Context, handle func(ctx context.Context, ev InboundEvent, userID string)) error
}

// Filter controls which inbound events are processed.
type Filter struct {
	BotSenderEmails map[string]bool
	ApprovedDomains map[string]bool
	ApprovedRooms   map[string]bool
}

// Allow reports whether ev should be dispatched.
func (f Filter) Allow(ev InboundEvent) bool {
	if ev.SenderType != "" && ev.SenderType != "person" {
		return false
	}
	if ev.Verb != "" && ev.Verb != "post" {
		return false
	}
	if f.BotSenderEmails[strings.ToLower(ev.SenderEmail)] {
		return false
	}
	if len(f.ApprovedDomains) > 0 {
		parts := strings.SplitN(ev.SenderEmail, "@", 2)
		if len(parts) != 2 || !f.ApprovedDomains[strings.ToLower(parts[1])] {
			return false
		}
	}
	if len(f.ApprovedRooms) > 0 && !f.ApprovedRooms[ev.RoomID] {
		return false
	}
	return true
}

// thinkingMessages and doneMessages (the rotating progress/completion
// phrase banks) live in messages.go.

// Config holds the tunables spec §4.10 names.
type Config struct {
	ThinkingInterval time.Duration // default 15s
	MaxThinkingEdits int           // default 9
	MaxMessageChars  int           // default 7000
}

func (c Config) withDefaults() Config {
	if c.ThinkingInterval <= 0 {
		c.ThinkingInterval = 15 * time.Second
	}
	if c.MaxThinkingEdits <= 0 {
		c.MaxThinkingEdits = 9
	}
	if c.MaxMessageChars <= 0 {
		c.MaxMessageChars = 7000
	}
	return c
}

// Adapter bridges one chat transport's event stream into Dispatcher calls.
type Adapter struct {
	Transport Transport
	Dispatch  Asker
	Filter    Filter
	Config    Config
	Log       *slog.Logger

	mu   sync.Mutex
	tick int // rotates thinking/done phrase selection deterministically
}

// New builds an Adapter.
func New(t Transport, d Asker, filter Filter, cfg Config, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{Transport: t, Dispatch: d, Filter: filter, Config: cfg.withDefaults(), Log: log}
}

// HandleEvent processes one inbound event end to end: filter, thinking
// message, dispatch, completion edit, threaded reply.
func (a *Adapter) HandleEvent(ctx context.Context, ev InboundEvent, userID string) {
	if !a.Filter.Allow(ev) {
		return
	}

	parentID := ev.ParentID
	if parentID == "" {
		parentID = ev.MessageID
	}

	thinkingID, err := a.Transport.SendMessage(ctx, ev.RoomID, parentID, a.nextThinkingPhrase(), false)
	if err != nil {
		a.Log.Error("chatadapter: failed to send thinking message", "room_id", ev.RoomID, "error", err)
		return
	}

	updaterCtx, cancelUpdater := context.WithCancel(ctx)
	defer cancelUpdater()
	go a.runThinkingUpdater(updaterCtx, ev.RoomID, thinkingID)

	start := time.Now()
	result, askErr := a.Dispatch.Ask(ctx, userID, ev.RoomID, ev.Text)
	cancelUpdater()
	elapsed := time.Since(start)

	if askErr != nil {
		a.Log.Error("chatadapter: dispatch failed", "room_id", ev.RoomID, "error", askErr)
		_ = a.Transport.EditMessage(ctx, ev.RoomID, thinkingID, "Sorry, something went wrong handling that request.", false)
		return
	}

	completionLine := a.completionLine(result, elapsed)
	if err := a.Transport.EditMessage(ctx, ev.RoomID, thinkingID, completionLine, false); err != nil {
		a.Log.Warn("chatadapter: failed to edit thinking message", "room_id", ev.RoomID, "error", err)
	}

	content := truncate(result.Content, a.Config.MaxMessageChars)
	replyID, err := a.Transport.SendMessage(ctx, ev.RoomID, parentID, content, true)
	if err != nil {
		a.Log.Error("chatadapter: failed to post reply", "room_id", ev.RoomID, "error", err)
		return
	}

	if result.ArtifactPath != "" {
		if err := a.Transport.AttachFile(ctx, ev.RoomID, replyID, result.ArtifactPath); err != nil {
			a.Log.Warn("chatadapter: failed to attach artifact", "path", result.ArtifactPath, "error", err)
		}
	}
}

func (a *Adapter) runThinkingUpdater(ctx context.Context, roomID, messageID string) {
	ticker := time.NewTicker(a.Config.ThinkingInterval)
	defer ticker.Stop()
	for edits := 0; edits < a.Config.MaxThinkingEdits; edits++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Transport.EditMessage(ctx, roomID, messageID, a.nextThinkingPhrase(), false); err != nil {
				return
			}
		}
	}
}

func (a *Adapter) nextThinkingPhrase() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	phrase := thinkingMessages[a.tick%len(thinkingMessages)]
	a.tick++
	return phrase
}

func (a *Adapter) nextDoneWord() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	word := doneMessages[a.tick%len(doneMessages)]
	a.tick++
	return word
}

func (a *Adapter) completionLine(result models.Result, elapsed time.Duration) string {
	done := a.nextDoneWord()
	if result.Metrics.TotalTokens() == 0 {
		return fmt.Sprintf("%s ⚡ Response time: %.1fs", done, elapsed.Seconds())
	}
	return fmt.Sprintf("%s ⚡ Time: %.1fs (%.1fs prompt + %.1fs gen) | Tokens: %d→%d | Speed: %.1f tok/s",
		done, elapsed.Seconds(), result.Metrics.PromptTime, result.Metrics.GenTime,
		result.Metrics.InputTokens, result.Metrics.OutputTokens, result.Metrics.TokensPerSec())
}

func truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	const suffix = "\n\n_(truncated)_"
	cut := max - len(suffix)
	if cut < 0 {
		cut = 0
	}
	return text[:cut] + suffix
}
