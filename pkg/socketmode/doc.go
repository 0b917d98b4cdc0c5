// Package socketmode is a [Slack Socket Mode] client.
//
// A [Client] obtains a temporary WebSocket URL from Slack, keeps a
// connection open (reconnecting with exponential backoff whenever
// it breaks), parses every incoming frame with [events.Parse], and
// dispatches it to the matching method of a user-supplied [Handler].
//
// Envelopes that require an acknowledgement are passed along with an
// [AckToken]. Handlers should call [AckToken.Ack] or [AckToken.AckWithPayload]
// exactly once, within 3 seconds. If they don't, the client acknowledges the
// envelope on their behalf: when the handler returns, when it panics, or when
// the acknowledgement deadline passes, whichever happens first.
//
// Handlers are called sequentially, in the order that Slack sent the
// envelopes. Slow handlers delay all subsequent envelopes, so long-running
// work should be off-loaded to other goroutines, after acknowledging.
//
// [Slack Socket Mode]: https://docs.slack.dev/apis/events-api/using-socket-mode
package socketmode
