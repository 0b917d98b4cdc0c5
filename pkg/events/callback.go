package events

import (
	"encoding/json"
)

// EventCallback is the outer payload of an [EventsAPI] envelope.
//
// https://docs.slack.dev/apis/events-api/#events-JSON
type EventCallback struct {
	Token               string `json:"token"`
	TeamID              string `json:"team_id"`
	ContextTeamID       string `json:"context_team_id,omitempty"`
	ContextEnterpriseID string `json:"context_enterprise_id,omitempty"`
	APIAppID            string `json:"api_app_id"`

	Type string `json:"type"` // Always "event_callback".

	EventID            string `json:"event_id"`
	EventTime          int64  `json:"event_time"`
	EventContext       string `json:"event_context,omitempty"`
	IsExtSharedChannel bool   `json:"is_ext_shared_channel"`

	Authorizations []Authorization `json:"authorizations,omitempty"`

	Event InnerEvent `json:"event"`
}

// https://docs.slack.dev/apis/events-api/#authorizations
type Authorization struct {
	EnterpriseID        string `json:"enterprise_id,omitempty"`
	TeamID              string `json:"team_id"`
	UserID              string `json:"user_id"`
	IsBot               bool   `json:"is_bot"`
	IsEnterpriseInstall bool   `json:"is_enterprise_install"`
}

func (c *EventCallback) UnmarshalJSON(b []byte) error {
	type alias EventCallback
	var a struct {
		alias
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}

	*c = EventCallback(a.alias)
	ev, err := parseInnerEvent(a.Event)
	if err != nil {
		return err
	}
	c.Event = ev
	return nil
}

// Inner event types (other than "message", see [MessageEvent]).
const (
	TypeAppMention          = "app_mention"
	TypeAppHomeOpened       = "app_home_opened"
	TypeChannelArchive      = "channel_archive"
	TypeChannelCreated      = "channel_created"
	TypeChannelRename       = "channel_rename"
	TypeChannelUnarchive    = "channel_unarchive"
	TypeMemberJoinedChannel = "member_joined_channel"
	TypeMemberLeftChannel   = "member_left_channel"
	TypeMessage             = "message"
	TypeReactionAdded       = "reaction_added"
	TypeReactionRemoved     = "reaction_removed"
	TypeTeamJoin            = "team_join"
)

// InnerEvent is the actual event inside an [EventCallback].
type InnerEvent interface {
	EventType() string
	isInnerEvent()
}

// https://docs.slack.dev/reference/events/app_mention/
type AppMention struct {
	User        string           `json:"user"`
	Team        string           `json:"team,omitempty"`
	Channel     string           `json:"channel"`
	Text        string           `json:"text"`
	Blocks      []map[string]any `json:"blocks,omitempty"`
	ClientMsgID string           `json:"client_msg_id,omitempty"`
	TS          string           `json:"ts"`
	ThreadTS    string           `json:"thread_ts,omitempty"`
	EventTS     string           `json:"event_ts"`
}

// https://docs.slack.dev/reference/events/app_home_opened/
type AppHomeOpened struct {
	User    string         `json:"user"`
	Channel string         `json:"channel"`
	Tab     string         `json:"tab"` // "home" or "messages".
	View    map[string]any `json:"view,omitempty"`
	EventTS string         `json:"event_ts"`
}

// https://docs.slack.dev/reference/events/channel_archive/
type ChannelArchive struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	IsMoved int    `json:"is_moved,omitempty"`
	EventTS string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/channel_unarchive/
type ChannelUnarchive struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	EventTS string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/channel_created/
type ChannelCreated struct {
	Channel ChannelInfo `json:"channel"`
	EventTS string      `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/channel_rename/
type ChannelRename struct {
	Channel ChannelInfo `json:"channel"`
	EventTS string      `json:"event_ts,omitempty"`
}

type ChannelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created int64  `json:"created"`
	Creator string `json:"creator,omitempty"`
}

// https://docs.slack.dev/reference/events/member_joined_channel/
type MemberJoinedChannel struct {
	User        string `json:"user"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	Team        string `json:"team"`
	Enterprise  string `json:"enterprise,omitempty"`
	Inviter     string `json:"inviter,omitempty"`
	EventTS     string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/member_left_channel/
type MemberLeftChannel struct {
	User        string `json:"user"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	Team        string `json:"team"`
	Enterprise  string `json:"enterprise,omitempty"`
	EventTS     string `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/events/reaction_added/
type ReactionAdded struct {
	User     string       `json:"user"`
	Reaction string       `json:"reaction"`
	Item     ReactionItem `json:"item"`
	ItemUser string       `json:"item_user,omitempty"`
	EventTS  string       `json:"event_ts"`
}

// https://docs.slack.dev/reference/events/reaction_removed/
type ReactionRemoved struct {
	User     string       `json:"user"`
	Reaction string       `json:"reaction"`
	Item     ReactionItem `json:"item"`
	ItemUser string       `json:"item_user,omitempty"`
	EventTS  string       `json:"event_ts"`
}

type ReactionItem struct {
	Type        string `json:"type"` // "message", "file", or "file_comment".
	Channel     string `json:"channel,omitempty"`
	TS          string `json:"ts,omitempty"`
	File        string `json:"file,omitempty"`
	FileComment string `json:"file_comment,omitempty"`
}

// https://docs.slack.dev/reference/events/team_join/
type TeamJoin struct {
	User    TeamMember `json:"user"`
	EventTS string     `json:"event_ts,omitempty"`
}

// https://docs.slack.dev/reference/objects/user-object
type TeamMember struct {
	ID       string `json:"id"`
	TeamID   string `json:"team_id"`
	Name     string `json:"name"`
	RealName string `json:"real_name,omitempty"`
	TZ       string `json:"tz,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

// UnknownEvent is an inner event with an unrecognized type.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (AppMention) EventType() string          { return TypeAppMention }
func (AppHomeOpened) EventType() string       { return TypeAppHomeOpened }
func (ChannelArchive) EventType() string      { return TypeChannelArchive }
func (ChannelCreated) EventType() string      { return TypeChannelCreated }
func (ChannelRename) EventType() string       { return TypeChannelRename }
func (ChannelUnarchive) EventType() string    { return TypeChannelUnarchive }
func (MemberJoinedChannel) EventType() string { return TypeMemberJoinedChannel }
func (MemberLeftChannel) EventType() string   { return TypeMemberLeftChannel }
func (ReactionAdded) EventType() string       { return TypeReactionAdded }
func (ReactionRemoved) EventType() string     { return TypeReactionRemoved }
func (TeamJoin) EventType() string            { return TypeTeamJoin }
func (u UnknownEvent) EventType() string      { return u.Type }

func (AppMention) isInnerEvent()          {}
func (AppHomeOpened) isInnerEvent()       {}
func (ChannelArchive) isInnerEvent()      {}
func (ChannelCreated) isInnerEvent()      {}
func (ChannelRename) isInnerEvent()       {}
func (ChannelUnarchive) isInnerEvent()    {}
func (MemberJoinedChannel) isInnerEvent() {}
func (MemberLeftChannel) isInnerEvent()   {}
func (ReactionAdded) isInnerEvent()       {}
func (ReactionRemoved) isInnerEvent()     {}
func (TeamJoin) isInnerEvent()            {}
func (UnknownEvent) isInnerEvent()        {}

func (e AppMention) MarshalJSON() ([]byte, error) {
	type alias AppMention
	return marshalTagged(alias(e), "type", TypeAppMention)
}

func (e AppHomeOpened) MarshalJSON() ([]byte, error) {
	type alias AppHomeOpened
	return marshalTagged(alias(e), "type", TypeAppHomeOpened)
}

func (e ChannelArchive) MarshalJSON() ([]byte, error) {
	type alias ChannelArchive
	return marshalTagged(alias(e), "type", TypeChannelArchive)
}

func (e ChannelCreated) MarshalJSON() ([]byte, error) {
	type alias ChannelCreated
	return marshalTagged(alias(e), "type", TypeChannelCreated)
}

func (e ChannelRename) MarshalJSON() ([]byte, error) {
	type alias ChannelRename
	return marshalTagged(alias(e), "type", TypeChannelRename)
}

func (e ChannelUnarchive) MarshalJSON() ([]byte, error) {
	type alias ChannelUnarchive
	return marshalTagged(alias(e), "type", TypeChannelUnarchive)
}

func (e MemberJoinedChannel) MarshalJSON() ([]byte, error) {
	type alias MemberJoinedChannel
	return marshalTagged(alias(e), "type", TypeMemberJoinedChannel)
}

func (e MemberLeftChannel) MarshalJSON() ([]byte, error) {
	type alias MemberLeftChannel
	return marshalTagged(alias(e), "type", TypeMemberLeftChannel)
}

func (e ReactionAdded) MarshalJSON() ([]byte, error) {
	type alias ReactionAdded
	return marshalTagged(alias(e), "type", TypeReactionAdded)
}

func (e ReactionRemoved) MarshalJSON() ([]byte, error) {
	type alias ReactionRemoved
	return marshalTagged(alias(e), "type", TypeReactionRemoved)
}

func (e TeamJoin) MarshalJSON() ([]byte, error) {
	type alias TeamJoin
	return marshalTagged(alias(e), "type", TypeTeamJoin)
}

func (e UnknownEvent) MarshalJSON() ([]byte, error) {
	return marshalRaw(e.Raw, "type", e.Type)
}
