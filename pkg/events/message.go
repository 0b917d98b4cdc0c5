package events

import (
	"encoding/json"
)

// Message subtypes.
//
// https://docs.slack.dev/reference/events/message/#subtypes
const (
	SubtypeNone            = ""
	SubtypeBotMessage      = "bot_message"
	SubtypeChannelJoin     = "channel_join"
	SubtypeChannelLeave    = "channel_leave"
	SubtypeFileShare       = "file_share"
	SubtypeMeMessage       = "me_message"
	SubtypeMessageChanged  = "message_changed"
	SubtypeMessageDeleted  = "message_deleted"
	SubtypeMessageReplied  = "message_replied"
	SubtypeThreadBroadcast = "thread_broadcast"
)

// MessageEvent is an [InnerEvent] whose type is "message". Its concrete
// structure depends on its subtype: [Message] (no subtype), [BotMessage],
// [MeMessage], [MessageChanged], [MessageDeleted], [MessageReplied],
// [ThreadBroadcast], [FileShare], [ChannelJoin], [ChannelLeave],
// or [UnknownMessage].
//
// https://docs.slack.dev/reference/events/message/
type MessageEvent interface {
	InnerEvent
	MessageSubtype() string
}

// Message is a regular message sent by a user, without a subtype.
type Message struct {
	User         string           `json:"user,omitempty"`
	Team         string           `json:"team,omitempty"`
	Channel      string           `json:"channel,omitempty"`
	ChannelType  string           `json:"channel_type,omitempty"`
	Text         string           `json:"text"`
	Blocks       []map[string]any `json:"blocks,omitempty"`
	ClientMsgID  string           `json:"client_msg_id,omitempty"`
	ParentUserID string           `json:"parent_user_id,omitempty"`
	Edited       *Edited          `json:"edited,omitempty"`

	TS       string `json:"ts"`
	EventTS  string `json:"event_ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"` // Reply in a thread.
}

// https://docs.slack.dev/reference/events/message/bot_message
type BotMessage struct {
	BotID       string           `json:"bot_id"`
	AppID       string           `json:"app_id,omitempty"`
	Username    string           `json:"username,omitempty"` // Customized display name.
	Channel     string           `json:"channel,omitempty"`
	ChannelType string           `json:"channel_type,omitempty"`
	Text        string           `json:"text"`
	Blocks      []map[string]any `json:"blocks,omitempty"`

	TS       string `json:"ts"`
	EventTS  string `json:"event_ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/message/me_message
type MeMessage struct {
	User        string `json:"user,omitempty"`
	Channel     string `json:"channel,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
	Text        string `json:"text"`

	TS      string `json:"ts"`
	EventTS string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/message/message_changed
type MessageChanged struct {
	Hidden      bool   `json:"hidden,omitempty"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type,omitempty"`

	Message         *NestedMessage `json:"message,omitempty"`
	PreviousMessage *NestedMessage `json:"previous_message,omitempty"`

	TS      string `json:"ts"`
	EventTS string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/message/message_deleted
type MessageDeleted struct {
	Hidden      bool   `json:"hidden,omitempty"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type,omitempty"`

	PreviousMessage *NestedMessage `json:"previous_message,omitempty"`

	TS        string `json:"ts"`
	EventTS   string `json:"event_ts,omitempty"`
	DeletedTS string `json:"deleted_ts"`
}

// https://docs.slack.dev/reference/events/message/message_replied
type MessageReplied struct {
	Hidden      bool   `json:"hidden,omitempty"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type,omitempty"`

	Message *NestedMessage `json:"message,omitempty"`

	TS      string `json:"ts"`
	EventTS string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/message/thread_broadcast
type ThreadBroadcast struct {
	User        string           `json:"user,omitempty"`
	Channel     string           `json:"channel,omitempty"`
	ChannelType string           `json:"channel_type,omitempty"`
	Text        string           `json:"text"`
	Blocks      []map[string]any `json:"blocks,omitempty"`
	ClientMsgID string           `json:"client_msg_id,omitempty"`

	Root *NestedMessage `json:"root,omitempty"`

	TS       string `json:"ts"`
	EventTS  string `json:"event_ts,omitempty"`
	ThreadTS string `json:"thread_ts"`
}

// https://docs.slack.dev/reference/events/message/file_share
type FileShare struct {
	User         string           `json:"user,omitempty"`
	Channel      string           `json:"channel,omitempty"`
	ChannelType  string           `json:"channel_type,omitempty"`
	Text         string           `json:"text"`
	Blocks       []map[string]any `json:"blocks,omitempty"`
	Files        []File           `json:"files,omitempty"`
	Upload       bool             `json:"upload,omitempty"`
	DisplayAsBot bool             `json:"display_as_bot,omitempty"`

	TS       string `json:"ts"`
	EventTS  string `json:"event_ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/message/channel_join
type ChannelJoin struct {
	User        string `json:"user"`
	Inviter     string `json:"inviter,omitempty"`
	Channel     string `json:"channel,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
	Text        string `json:"text"`

	TS      string `json:"ts"`
	EventTS string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/message/channel_leave
type ChannelLeave struct {
	User        string `json:"user"`
	Channel     string `json:"channel,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
	Text        string `json:"text"`

	TS      string `json:"ts"`
	EventTS string `json:"event_ts,omitempty"`
}

// UnknownMessage is a message with an unrecognized subtype.
// The raw subtype string is preserved as-is.
type UnknownMessage struct {
	Subtype string
	Raw     json.RawMessage
}

// NestedMessage is a message object embedded in another message event,
// e.g. the current and previous states of an edited message.
type NestedMessage struct {
	Type    string `json:"type,omitempty"` // Always "message".
	Subtype string `json:"subtype,omitempty"`

	User     string           `json:"user,omitempty"`
	BotID    string           `json:"bot_id,omitempty"`
	Username string           `json:"username,omitempty"`
	Team     string           `json:"team,omitempty"`
	Text     string           `json:"text"`
	Blocks   []map[string]any `json:"blocks,omitempty"`
	Files    []File           `json:"files,omitempty"`
	Edited   *Edited          `json:"edited,omitempty"`

	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`

	ReplyCount      int      `json:"reply_count,omitempty"`
	ReplyUsers      []string `json:"reply_users,omitempty"`
	ReplyUsersCount int      `json:"reply_users_count,omitempty"`
	LatestReply     string   `json:"latest_reply,omitempty"`
}

type Edited struct {
	User string `json:"user"`
	TS   string `json:"ts"`
}

// https://docs.slack.dev/reference/objects/file-object
type File struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Title      string `json:"title,omitempty"`
	MimeType   string `json:"mimetype,omitempty"`
	FileType   string `json:"filetype,omitempty"`
	PrettyType string `json:"pretty_type,omitempty"`
	Size       int    `json:"size,omitempty"`
	Mode       string `json:"mode,omitempty"` // One of: "hosted", "external", "snippet", or "post".
	IsExternal bool   `json:"is_external,omitempty"`
	IsPublic   bool   `json:"is_public,omitempty"`

	URLPrivate         string `json:"url_private,omitempty"`
	URLPrivateDownload string `json:"url_private_download,omitempty"`
	Permalink          string `json:"permalink,omitempty"`
}

func (Message) EventType() string         { return TypeMessage }
func (BotMessage) EventType() string      { return TypeMessage }
func (MeMessage) EventType() string       { return TypeMessage }
func (MessageChanged) EventType() string  { return TypeMessage }
func (MessageDeleted) EventType() string  { return TypeMessage }
func (MessageReplied) EventType() string  { return TypeMessage }
func (ThreadBroadcast) EventType() string { return TypeMessage }
func (FileShare) EventType() string       { return TypeMessage }
func (ChannelJoin) EventType() string     { return TypeMessage }
func (ChannelLeave) EventType() string    { return TypeMessage }
func (UnknownMessage) EventType() string  { return TypeMessage }

func (Message) MessageSubtype() string          { return SubtypeNone }
func (BotMessage) MessageSubtype() string       { return SubtypeBotMessage }
func (MeMessage) MessageSubtype() string        { return SubtypeMeMessage }
func (MessageChanged) MessageSubtype() string   { return SubtypeMessageChanged }
func (MessageDeleted) MessageSubtype() string   { return SubtypeMessageDeleted }
func (MessageReplied) MessageSubtype() string   { return SubtypeMessageReplied }
func (ThreadBroadcast) MessageSubtype() string  { return SubtypeThreadBroadcast }
func (FileShare) MessageSubtype() string        { return SubtypeFileShare }
func (ChannelJoin) MessageSubtype() string      { return SubtypeChannelJoin }
func (ChannelLeave) MessageSubtype() string     { return SubtypeChannelLeave }
func (m UnknownMessage) MessageSubtype() string { return m.Subtype }

func (Message) isInnerEvent()         {}
func (BotMessage) isInnerEvent()      {}
func (MeMessage) isInnerEvent()       {}
func (MessageChanged) isInnerEvent()  {}
func (MessageDeleted) isInnerEvent()  {}
func (MessageReplied) isInnerEvent()  {}
func (ThreadBroadcast) isInnerEvent() {}
func (FileShare) isInnerEvent()       {}
func (ChannelJoin) isInnerEvent()     {}
func (ChannelLeave) isInnerEvent()    {}
func (UnknownMessage) isInnerEvent()  {}

func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return marshalTagged(alias(m), "type", TypeMessage)
}

func (m BotMessage) MarshalJSON() ([]byte, error) {
	type alias BotMessage
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeBotMessage)
}

func (m MeMessage) MarshalJSON() ([]byte, error) {
	type alias MeMessage
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeMeMessage)
}

func (m MessageChanged) MarshalJSON() ([]byte, error) {
	type alias MessageChanged
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeMessageChanged)
}

func (m MessageDeleted) MarshalJSON() ([]byte, error) {
	type alias MessageDeleted
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeMessageDeleted)
}

func (m MessageReplied) MarshalJSON() ([]byte, error) {
	type alias MessageReplied
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeMessageReplied)
}

func (m ThreadBroadcast) MarshalJSON() ([]byte, error) {
	type alias ThreadBroadcast
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeThreadBroadcast)
}

func (m FileShare) MarshalJSON() ([]byte, error) {
	type alias FileShare
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeFileShare)
}

func (m ChannelJoin) MarshalJSON() ([]byte, error) {
	type alias ChannelJoin
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeChannelJoin)
}

func (m ChannelLeave) MarshalJSON() ([]byte, error) {
	type alias ChannelLeave
	return marshalTagged(alias(m), "type", TypeMessage, "subtype", SubtypeChannelLeave)
}

func (m UnknownMessage) MarshalJSON() ([]byte, error) {
	return marshalRaw(m.Raw, "type", TypeMessage, "subtype", m.Subtype)
}
