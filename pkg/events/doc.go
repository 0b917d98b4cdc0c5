// Package events models the frames that Slack sends over a [Socket Mode]
// connection, and parses them into typed Go values.
//
// The model is a hierarchy of discriminated unions, expressed as Go
// interfaces with unexported marker methods:
//
//   - [Event] is selected by the envelope's "type" field.
//   - [InnerEvent] (inside [EventCallback]) is selected by "event.type".
//   - [MessageEvent] is selected by "event.subtype", when "event.type" is "message".
//   - [Interaction] is selected by "payload.type".
//
// Every level except the top one has a catch-all variant ([UnknownEvent],
// [UnknownMessage], [UnknownInteraction]) that preserves the raw JSON,
// so that unrecognized shapes do not break the connection. Unknown envelope
// types are reported as a [ParseError] that matches [ErrUnknownType].
//
// All timestamps are kept as strings (e.g. "1665341482.399349"), never floats,
// because they are also used as message identifiers and thread anchors.
//
// [Socket Mode]: https://docs.slack.dev/apis/events-api/using-socket-mode
package events
