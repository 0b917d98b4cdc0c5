package events

import (
	"bytes"
	"encoding/json"
)

// Envelope types.
const (
	TypeHello         = "hello"
	TypeDisconnect    = "disconnect"
	TypeEventsAPI     = "events_api"
	TypeInteractive   = "interactive"
	TypeSlashCommands = "slash_commands"
)

// Event is a parsed Socket Mode envelope: [Hello], [Disconnect],
// [EventsAPI], [Interactive], [SlashCommands], or [Unknown].
type Event interface {
	EnvelopeType() string
	isEvent()
}

// Ackable is implemented by envelopes that Slack expects to be acknowledged.
type Ackable interface {
	Event
	Envelope() Header
}

// Header contains the fields that are shared by all ackable envelopes.
type Header struct {
	EnvelopeID             string `json:"envelope_id"`
	AcceptsResponsePayload bool   `json:"accepts_response_payload"`

	// https://docs.slack.dev/apis/events-api/#retries
	RetryAttempt int    `json:"retry_attempt,omitempty"`
	RetryReason  string `json:"retry_reason,omitempty"`
}

// Envelope returns the header itself, to implement [Ackable].
func (h Header) Envelope() Header {
	return h
}

// Hello is sent by Slack once the connection is ready to receive events.
//
// https://docs.slack.dev/apis/events-api/using-socket-mode#connect
type Hello struct {
	NumConnections int            `json:"num_connections"`
	ConnectionInfo ConnectionInfo `json:"connection_info"`
	DebugInfo      *DebugInfo     `json:"debug_info,omitempty"`
}

type ConnectionInfo struct {
	AppID string `json:"app_id"`
}

type DebugInfo struct {
	Host                      string `json:"host"`
	Started                   string `json:"started,omitempty"`
	BuildNumber               int    `json:"build_number,omitempty"`
	ApproximateConnectionTime int    `json:"approximate_connection_time,omitempty"`
}

// Disconnect is sent by Slack shortly before it closes the connection.
// Known reasons: "warning", "refresh_requested", "link_disabled",
// and "too_many_websockets".
//
// https://docs.slack.dev/apis/events-api/using-socket-mode#disconnect
type Disconnect struct {
	Reason    string     `json:"reason"`
	DebugInfo *DebugInfo `json:"debug_info,omitempty"`
}

// EventsAPI wraps an [Events API] callback.
//
// [Events API]: https://docs.slack.dev/apis/events-api/
type EventsAPI struct {
	Header

	Payload EventCallback `json:"payload"`
}

// Interactive wraps an [Interaction] with a Slack app's UI component.
type Interactive struct {
	Header

	Payload Interaction `json:"payload"`
}

// SlashCommands wraps the invocation of a [SlashCommand].
type SlashCommands struct {
	Header

	Payload SlashCommand `json:"payload"`
}

// Unknown is an envelope with an unrecognized type. [Parse] never returns
// it as a successful result, but it can be extracted from the [ParseError],
// in order to let a handler decide what to do with it.
type Unknown struct {
	Type string `json:"type"`
	Header

	Payload json.RawMessage `json:"payload,omitempty"`
}

func (Hello) EnvelopeType() string         { return TypeHello }
func (Disconnect) EnvelopeType() string    { return TypeDisconnect }
func (EventsAPI) EnvelopeType() string     { return TypeEventsAPI }
func (Interactive) EnvelopeType() string   { return TypeInteractive }
func (SlashCommands) EnvelopeType() string { return TypeSlashCommands }
func (u Unknown) EnvelopeType() string     { return u.Type }

func (Hello) isEvent()         {}
func (Disconnect) isEvent()    {}
func (EventsAPI) isEvent()     {}
func (Interactive) isEvent()   {}
func (SlashCommands) isEvent() {}
func (Unknown) isEvent()       {}

func (h Hello) MarshalJSON() ([]byte, error) {
	type alias Hello
	return marshalTagged(alias(h), "type", TypeHello)
}

func (d Disconnect) MarshalJSON() ([]byte, error) {
	type alias Disconnect
	return marshalTagged(alias(d), "type", TypeDisconnect)
}

func (e EventsAPI) MarshalJSON() ([]byte, error) {
	type alias EventsAPI
	return marshalTagged(alias(e), "type", TypeEventsAPI)
}

func (i Interactive) MarshalJSON() ([]byte, error) {
	type alias Interactive
	return marshalTagged(alias(i), "type", TypeInteractive)
}

func (s SlashCommands) MarshalJSON() ([]byte, error) {
	type alias SlashCommands
	return marshalTagged(alias(s), "type", TypeSlashCommands)
}

// marshalTagged encodes v, which must be encoded as a JSON object, and
// prepends discriminator keys and values to it. This is necessary because
// the discriminators are implied by the Go type, not stored in a field.
func marshalTagged(v any, tags ...string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBufferString("{")
	for i := 0; i+1 < len(tags); i += 2 {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(tags[i])
		val, _ := json.Marshal(tags[i+1])
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}

	if len(b) > 2 {
		buf.WriteByte(',')
		buf.Write(b[1:])
	} else {
		buf.WriteByte('}')
	}

	return buf.Bytes(), nil
}

// marshalRaw encodes the raw JSON of a catch-all variant,
// or at least its discriminator if the raw JSON is missing.
func marshalRaw(raw json.RawMessage, tags ...string) ([]byte, error) {
	if len(raw) > 0 {
		return raw, nil
	}
	return marshalTagged(struct{}{}, tags...)
}
