// Package discord implements chatadapter.Transport over the Discord API,
// proving the Transport boundary is transport-agnostic (spec §6's
// ChatTransport contract doesn't name a platform). Grounded on the
// teacher's internal/channels/discord adapter (ChannelMessageSendComplex,
// ChannelMessageEdit, ChannelFileSendWithMessage usage, and an
// AddHandler-based gateway event loop).
package discord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"github.com/secops-bot/engine/internal/chatadapter"
)

// Transport adapts a discordgo.Session into chatadapter.Transport.
type Transport struct {
	session *discordgo.Session
}

// New builds a Transport from a bot token.
func New(botToken string) (*Transport, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	return &Transport{session: session}, nil
}

// SendMessage posts content, replying to parentID via a message reference
// when present so the conversation reads as threaded even though Discord
// has no native "thread_ts" concept outside of channel threads.
func (t *Transport) SendMessage(ctx context.Context, roomID, parentID, text string, markdown bool) (string, error) {
	data := &discordgo.MessageSend{Content: text}
	if parentID != "" {
		data.Reference = &discordgo.MessageReference{MessageID: parentID, ChannelID: roomID}
	}
	msg, err := t.session.ChannelMessageSendComplex(roomID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: send message: %w", err)
	}
	return msg.ID, nil
}

// EditMessage updates a previously sent message in place.
func (t *Transport) EditMessage(ctx context.Context, roomID, messageID, text string, markdown bool) error {
	_, err := t.session.ChannelMessageEdit(roomID, messageID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: edit message: %w", err)
	}
	return nil
}

// AttachFile uploads the file at path as a follow-up message referencing
// messageID.
func (t *Transport) AttachFile(ctx context.Context, roomID, messageID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("discord: open artifact: %w", err)
	}
	defer f.Close()

	_, err = t.session.ChannelMessageSendComplex(roomID, &discordgo.MessageSend{
		Reference: &discordgo.MessageReference{MessageID: messageID, ChannelID: roomID},
		Files:     []*discordgo.File{{Name: filepath.Base(path), Reader: f}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: attach file: %w", err)
	}
	return nil
}

// Listen opens the gateway connection and translates MessageCreate events
// into InboundEvents until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, handle func(ctx context.Context, ev chatadapter.InboundEvent, userID string)) error {
	t.session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	remove := t.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		var parentID string
		if m.MessageReference != nil {
			parentID = m.MessageReference.MessageID
		}
		handle(ctx, chatadapter.InboundEvent{
			RoomID:      m.ChannelID,
			MessageID:   m.ID,
			ParentID:    parentID,
			Text:        m.Content,
			SenderEmail: m.Author.ID,
			SenderType:  "person",
			Verb:        "post",
		}, m.Author.ID)
	})
	defer remove()

	if err := t.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway session: %w", err)
	}
	defer t.session.Close()

	<-ctx.Done()
	return nil
}
