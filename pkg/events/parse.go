package events

import (
	"bytes"
	"encoding/json"
)

// envelope is the outer JSON wrapper of every Socket Mode text frame.
type envelope struct {
	Type string `json:"type"`
	Header

	Payload json.RawMessage `json:"payload"`
}

// Parse maps a Socket Mode text frame to an [Event]. It dispatches on the
// envelope's type, and then recursively on nested discriminators. Unknown
// nested discriminators are mapped to catch-all variants, not errors.
//
// Errors are always of type [*ParseError].
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ParseError{Kind: ErrMalformed, Err: err}
	}

	if env.Type == "" {
		return nil, &ParseError{Kind: ErrMissingField, Field: "type", EnvelopeID: env.EnvelopeID}
	}

	switch env.Type {
	case TypeHello:
		e := new(Hello)
		if err := json.Unmarshal(data, e); err != nil {
			return nil, malformed(env, err)
		}
		return e, nil

	case TypeDisconnect:
		e := new(Disconnect)
		if err := json.Unmarshal(data, e); err != nil {
			return nil, malformed(env, err)
		}
		return e, nil

	case TypeEventsAPI:
		if err := checkAckable(env); err != nil {
			return nil, err
		}
		e := &EventsAPI{Header: env.Header}
		if err := json.Unmarshal(env.Payload, &e.Payload); err != nil {
			return nil, malformed(env, err)
		}
		if e.Payload.Event == nil {
			return nil, &ParseError{Kind: ErrMissingField, Field: "event", Type: env.Type, EnvelopeID: env.EnvelopeID, Payload: env.Payload}
		}
		return e, nil

	case TypeInteractive:
		if err := checkAckable(env); err != nil {
			return nil, err
		}
		i, err := parseInteraction(env.Payload)
		if err != nil {
			return nil, malformed(env, err)
		}
		return &Interactive{Header: env.Header, Payload: i}, nil

	case TypeSlashCommands:
		if err := checkAckable(env); err != nil {
			return nil, err
		}
		e := &SlashCommands{Header: env.Header}
		if err := json.Unmarshal(env.Payload, &e.Payload); err != nil {
			return nil, malformed(env, err)
		}
		return e, nil

	default:
		return nil, &ParseError{
			Kind:       ErrUnknownType,
			Type:       env.Type,
			EnvelopeID: env.EnvelopeID,
			Payload:    env.Payload,
			header:     env.Header,
		}
	}
}

// checkAckable ensures that an envelope which requires
// an acknowledgement has the fields needed to process it.
func checkAckable(env envelope) error {
	if env.EnvelopeID == "" {
		return &ParseError{Kind: ErrMissingField, Field: "envelope_id", Type: env.Type}
	}
	if isNull(env.Payload) {
		return &ParseError{Kind: ErrMissingField, Field: "payload", Type: env.Type, EnvelopeID: env.EnvelopeID}
	}
	return nil
}

func malformed(env envelope, err error) error {
	return &ParseError{Kind: ErrMalformed, Type: env.Type, EnvelopeID: env.EnvelopeID, Payload: env.Payload, Err: err}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// discriminators is used to peek at the nested type fields
// of a JSON object, before decoding it into a concrete type.
type discriminators struct {
	Type    *string `json:"type"`
	Subtype string  `json:"subtype"`
}

func parseInnerEvent(raw json.RawMessage) (InnerEvent, error) {
	if isNull(raw) {
		return nil, nil
	}

	var d discriminators
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	if d.Type == nil {
		return &UnknownEvent{Raw: raw}, nil
	}

	var e InnerEvent
	switch *d.Type {
	case TypeAppMention:
		e = new(AppMention)
	case TypeAppHomeOpened:
		e = new(AppHomeOpened)
	case TypeChannelArchive:
		e = new(ChannelArchive)
	case TypeChannelCreated:
		e = new(ChannelCreated)
	case TypeChannelRename:
		e = new(ChannelRename)
	case TypeChannelUnarchive:
		e = new(ChannelUnarchive)
	case TypeMemberJoinedChannel:
		e = new(MemberJoinedChannel)
	case TypeMemberLeftChannel:
		e = new(MemberLeftChannel)
	case TypeMessage:
		return parseMessage(d.Subtype, raw)
	case TypeReactionAdded:
		e = new(ReactionAdded)
	case TypeReactionRemoved:
		e = new(ReactionRemoved)
	case TypeTeamJoin:
		e = new(TeamJoin)
	default:
		return &UnknownEvent{Type: *d.Type, Raw: raw}, nil
	}

	if err := json.Unmarshal(raw, e); err != nil {
		return nil, err
	}
	return e, nil
}

func parseMessage(subtype string, raw json.RawMessage) (MessageEvent, error) {
	var m MessageEvent
	switch subtype {
	case SubtypeNone:
		m = new(Message)
	case SubtypeBotMessage:
		m = new(BotMessage)
	case SubtypeChannelJoin:
		m = new(ChannelJoin)
	case SubtypeChannelLeave:
		m = new(ChannelLeave)
	case SubtypeFileShare:
		m = new(FileShare)
	case SubtypeMeMessage:
		m = new(MeMessage)
	case SubtypeMessageChanged:
		m = new(MessageChanged)
	case SubtypeMessageDeleted:
		m = new(MessageDeleted)
	case SubtypeMessageReplied:
		m = new(MessageReplied)
	case SubtypeThreadBroadcast:
		m = new(ThreadBroadcast)
	default:
		return &UnknownMessage{Subtype: subtype, Raw: raw}, nil
	}

	if err := json.Unmarshal(raw, m); err != nil {
		return nil, err
	}
	return m, nil
}

func parseInteraction(raw json.RawMessage) (Interaction, error) {
	var d discriminators
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	if d.Type == nil {
		return &UnknownInteraction{Raw: raw}, nil
	}

	var i Interaction
	switch *d.Type {
	case TypeBlockActions:
		i = new(BlockActions)
	case TypeBlockSuggestion:
		i = new(BlockSuggestion)
	case TypeMessageAction:
		i = new(MessageAction)
	case TypeShortcut:
		i = new(Shortcut)
	case TypeViewClosed:
		i = new(ViewClosed)
	case TypeViewSubmission:
		i = new(ViewSubmission)
	default:
		return &UnknownInteraction{Type: *d.Type, Raw: raw}, nil
	}

	if err := json.Unmarshal(raw, i); err != nil {
		return nil, err
	}
	return i, nil
}
