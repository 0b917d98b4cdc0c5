package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/tzrikka/slackmode/pkg/events"
	"github.com/tzrikka/slackmode/pkg/socketmode"
)

// poster is the subset of the Slack Web API client that [handler] uses.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// handler logs every Socket Mode envelope it receives, and responds to
// app mentions and slash commands. It acknowledges every envelope itself,
// including the ones that it ignores.
type handler struct {
	socketmode.NopHandler

	api       poster
	botUserID string
}

func newHandler(api poster, botUserID string) *handler {
	return &handler{api: api, botUserID: botUserID}
}

func (h *handler) OnHello(ctx context.Context, e *events.Hello) {
	zerolog.Ctx(ctx).Debug().Int("num_connections", e.NumConnections).Msg("hello")
}

func (h *handler) OnDisconnect(ctx context.Context, e *events.Disconnect) {
	zerolog.Ctx(ctx).Debug().Str("reason", e.Reason).Msg("disconnect")
}

func (h *handler) OnEventsAPI(ctx context.Context, e *events.EventsAPI, ack *socketmode.AckToken) {
	l := zerolog.Ctx(ctx)
	l.Info().Str("envelope_id", e.EnvelopeID).Str("event_type", e.Payload.Event.EventType()).
		Str("event_id", e.Payload.EventID).Msg("received Slack event")

	// Acknowledge before replying, because Slack's deadline is short.
	ackEnvelope(ctx, ack)

	mention, ok := e.Payload.Event.(*events.AppMention)
	if !ok || mention.User == h.botUserID {
		return
	}

	ts := mention.ThreadTS
	if ts == "" {
		ts = mention.TS
	}
	text := fmt.Sprintf("Hi <@%s>!", mention.User)
	if _, _, err := h.api.PostMessageContext(ctx, mention.Channel, slack.MsgOptionText(text, false), slack.MsgOptionTS(ts)); err != nil {
		l.Err(err).Str("channel", mention.Channel).Msg("failed to reply to app mention")
	}
}

func (h *handler) OnInteractive(ctx context.Context, e *events.Interactive, ack *socketmode.AckToken) {
	l := zerolog.Ctx(ctx).Info().Str("envelope_id", e.EnvelopeID).Str("interaction_type", e.Payload.InteractionType())
	if s, ok := e.Payload.(*events.Shortcut); ok {
		l = l.Str("callback_id", s.CallbackID).Str("user_id", s.User.ID)
	}
	l.Msg("received Slack interaction")

	ackEnvelope(ctx, ack)
}

func (h *handler) OnSlashCommands(ctx context.Context, e *events.SlashCommands, ack *socketmode.AckToken) {
	l := zerolog.Ctx(ctx)
	l.Info().Str("envelope_id", e.EnvelopeID).Str("command", e.Payload.Command).
		Str("user_id", e.Payload.UserID).Msg("received Slack slash command")

	resp := map[string]string{
		"response_type": "ephemeral",
		"text":          fmt.Sprintf("Received `%s %s`", e.Payload.Command, e.Payload.Text),
	}
	if err := ack.AckWithPayload(resp); err != nil {
		l.Warn().Err(err).Msg("failed to ack Slack slash command")
	}
}

func (h *handler) OnUnknown(ctx context.Context, e *events.Unknown, ack *socketmode.AckToken) {
	zerolog.Ctx(ctx).Warn().Str("type", e.Type).Str("envelope_id", ack.EnvelopeID()).
		Msg("received unknown Socket Mode envelope")
	ackEnvelope(ctx, ack)
}

// ackEnvelope acknowledges an envelope without a payload, if it has an ID.
func ackEnvelope(ctx context.Context, ack *socketmode.AckToken) {
	if ack == nil {
		return
	}
	if err := ack.Ack(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("envelope_id", ack.EnvelopeID()).Msg("failed to ack Socket Mode envelope")
	}
}
