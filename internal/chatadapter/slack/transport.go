// Package slack implements chatadapter.Transport over the Slack Web API.
// Grounded on the teacher's internal/channels/slack adapter (PostMessageContext
// for sends, UploadFileV2Context for attachments, a socketmode.Client event
// loop dispatching EventsAPI messages), generalised to the send/edit/attach
// surface ChatAdapter needs plus a thin Listen loop translating Slack
// message events into chatadapter.InboundEvent.
package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/secops-bot/engine/internal/chatadapter"
)

// Transport adapts a Slack bot token into chatadapter.Transport, and
// optionally an app-level token to drive Socket Mode in Listen.
type Transport struct {
	client *slack.Client
	socket *socketmode.Client
}

// New builds a Transport from a bot token (xoxb-...).
func New(botToken string) *Transport {
	return &Transport{client: slack.New(botToken)}
}

// NewWithSocketMode builds a Transport that can additionally Listen over
// Socket Mode, using an app-level token (xapp-...).
func NewWithSocketMode(botToken, appToken string) *Transport {
	client := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &Transport{client: client, socket: socketmode.New(client)}
}

// Listen runs the Socket Mode event loop until ctx is cancelled, translating
// message events into InboundEvents passed to handle.
func (t *Transport) Listen(ctx context.Context, handle func(ctx context.Context, ev chatadapter.InboundEvent, userID string)) error {
	if t.socket == nil {
		return fmt.Errorf("slack: transport was built without an app-level token; use NewWithSocketMode")
	}
	go func() {
		for evt := range t.socket.Events {
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			t.socket.Ack(*evt.Request)
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			inner, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok || inner.BotID != "" {
				continue
			}
			handle(ctx, chatadapter.InboundEvent{
				RoomID:      inner.Channel,
				MessageID:   inner.TimeStamp,
				ParentID:    inner.ThreadTimeStamp,
				Text:        inner.Text,
				SenderEmail: inner.User,
				SenderType:  "person",
				Verb:        "post",
			}, inner.User)
		}
	}()
	return t.socket.RunContext(ctx)
}

// SendMessage posts text as a threaded reply under parentID (Slack's
// thread_ts), or as a new top-level message if parentID is empty.
func (t *Transport) SendMessage(ctx context.Context, roomID, parentID, text string, markdown bool) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if parentID != "" {
		opts = append(opts, slack.MsgOptionTS(parentID))
	}
	_, timestamp, err := t.client.PostMessageContext(ctx, roomID, opts...)
	if err != nil {
		return "", fmt.Errorf("slack: send message: %w", err)
	}
	return timestamp, nil
}

// EditMessage updates a previously sent message in place.
func (t *Transport) EditMessage(ctx context.Context, roomID, messageID, text string, markdown bool) error {
	_, _, _, err := t.client.UpdateMessageContext(ctx, roomID, messageID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: edit message: %w", err)
	}
	return nil
}

// AttachFile uploads the file at path into the room, threaded under
// messageID.
func (t *Transport) AttachFile(ctx context.Context, roomID, messageID, path string) error {
	_, err := t.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:         roomID,
		File:            path,
		ThreadTimestamp: messageID,
	})
	if err != nil {
		return fmt.Errorf("slack: attach file: %w", err)
	}
	return nil
}
