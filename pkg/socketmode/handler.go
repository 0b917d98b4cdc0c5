package socketmode

import (
	"context"

	"github.com/tzrikka/slackmode/pkg/events"
)

// Handler receives parsed envelopes from a [Client], one method per
// envelope family. Methods are called sequentially, on the goroutine
// that reads from the connection.
//
// The context passed to each method is not cancelled when the client
// stops, so that in-flight handlers can complete. It carries the client's
// [zerolog] logger, with the session's details.
//
// To implement only some of the methods, embed [NopHandler],
// or use [HandlerFuncs].
type Handler interface {
	OnHello(ctx context.Context, e *events.Hello)
	OnDisconnect(ctx context.Context, e *events.Disconnect)
	OnEventsAPI(ctx context.Context, e *events.EventsAPI, ack *AckToken)
	OnInteractive(ctx context.Context, e *events.Interactive, ack *AckToken)
	OnSlashCommands(ctx context.Context, e *events.SlashCommands, ack *AckToken)

	// OnUnknown receives envelopes with an unrecognized type. The
	// [AckToken] is nil if the envelope doesn't have an envelope ID.
	OnUnknown(ctx context.Context, e *events.Unknown, ack *AckToken)
}

// NopHandler implements all the [Handler] methods as no-ops.
// Envelopes that require an acknowledgement are acknowledged
// automatically, without a payload.
type NopHandler struct{}

func (NopHandler) OnHello(context.Context, *events.Hello)                            {}
func (NopHandler) OnDisconnect(context.Context, *events.Disconnect)                  {}
func (NopHandler) OnEventsAPI(context.Context, *events.EventsAPI, *AckToken)         {}
func (NopHandler) OnInteractive(context.Context, *events.Interactive, *AckToken)     {}
func (NopHandler) OnSlashCommands(context.Context, *events.SlashCommands, *AckToken) {}
func (NopHandler) OnUnknown(context.Context, *events.Unknown, *AckToken)             {}

// HandlerFuncs is a [Handler] that delegates each method
// to an optional function. Nil functions are no-ops.
type HandlerFuncs struct {
	Hello         func(ctx context.Context, e *events.Hello)
	Disconnect    func(ctx context.Context, e *events.Disconnect)
	EventsAPI     func(ctx context.Context, e *events.EventsAPI, ack *AckToken)
	Interactive   func(ctx context.Context, e *events.Interactive, ack *AckToken)
	SlashCommands func(ctx context.Context, e *events.SlashCommands, ack *AckToken)
	Unknown       func(ctx context.Context, e *events.Unknown, ack *AckToken)
}

func (f HandlerFuncs) OnHello(ctx context.Context, e *events.Hello) {
	if f.Hello != nil {
		f.Hello(ctx, e)
	}
}

func (f HandlerFuncs) OnDisconnect(ctx context.Context, e *events.Disconnect) {
	if f.Disconnect != nil {
		f.Disconnect(ctx, e)
	}
}

func (f HandlerFuncs) OnEventsAPI(ctx context.Context, e *events.EventsAPI, ack *AckToken) {
	if f.EventsAPI != nil {
		f.EventsAPI(ctx, e, ack)
	}
}

func (f HandlerFuncs) OnInteractive(ctx context.Context, e *events.Interactive, ack *AckToken) {
	if f.Interactive != nil {
		f.Interactive(ctx, e, ack)
	}
}

func (f HandlerFuncs) OnSlashCommands(ctx context.Context, e *events.SlashCommands, ack *AckToken) {
	if f.SlashCommands != nil {
		f.SlashCommands(ctx, e, ack)
	}
}

func (f HandlerFuncs) OnUnknown(ctx context.Context, e *events.Unknown, ack *AckToken) {
	if f.Unknown != nil {
		f.Unknown(ctx, e, ack)
	}
}
