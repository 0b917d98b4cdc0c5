package events

import (
	"encoding/json"
)

// Interaction types.
//
// https://docs.slack.dev/reference/interaction-payloads
const (
	TypeBlockActions    = "block_actions"
	TypeBlockSuggestion = "block_suggestion"
	TypeMessageAction   = "message_action"
	TypeShortcut        = "shortcut"
	TypeViewClosed      = "view_closed"
	TypeViewSubmission  = "view_submission"
)

// Interaction is the payload of an [Interactive] envelope: [Shortcut],
// [MessageAction], [BlockActions], [ViewSubmission], [ViewClosed],
// [BlockSuggestion], or [UnknownInteraction].
type Interaction interface {
	InteractionType() string
	isInteraction()
}

// InteractionBase contains the fields that are shared by all interactions.
type InteractionBase struct {
	Team                *Team       `json:"team,omitempty"`
	User                User        `json:"user"`
	APIAppID            string      `json:"api_app_id"`
	Token               string      `json:"token"`
	TriggerID           string      `json:"trigger_id,omitempty"`
	Enterprise          *Enterprise `json:"enterprise,omitempty"`
	IsEnterpriseInstall bool        `json:"is_enterprise_install"`
}

type Team struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

type Enterprise struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// https://docs.slack.dev/reference/interaction-payloads/shortcuts-interaction-payload
type Shortcut struct {
	InteractionBase

	CallbackID string `json:"callback_id"`
	ActionTS   string `json:"action_ts,omitempty"`
}

// https://docs.slack.dev/reference/interaction-payloads/shortcuts-interaction-payload#message_actions
type MessageAction struct {
	InteractionBase

	CallbackID  string         `json:"callback_id"`
	ActionTS    string         `json:"action_ts,omitempty"`
	MessageTS   string         `json:"message_ts"`
	ResponseURL string         `json:"response_url,omitempty"`
	Channel     *Channel       `json:"channel,omitempty"`
	Message     map[string]any `json:"message,omitempty"`
}

// https://docs.slack.dev/reference/interaction-payloads/block_actions-payload
type BlockActions struct {
	InteractionBase

	Container   map[string]any `json:"container,omitempty"`
	Channel     *Channel       `json:"channel,omitempty"`
	Message     map[string]any `json:"message,omitempty"`
	View        *View          `json:"view,omitempty"`
	ResponseURL string         `json:"response_url,omitempty"`
	Actions     []BlockAction  `json:"actions"`
	State       map[string]any `json:"state,omitempty"`
}

// https://docs.slack.dev/reference/interaction-payloads/block_actions-payload#fields
type BlockAction struct {
	Type     string `json:"type"`
	ActionID string `json:"action_id"`
	BlockID  string `json:"block_id"`
	Value    string `json:"value,omitempty"`
	ActionTS string `json:"action_ts,omitempty"`

	SelectedOption       map[string]any `json:"selected_option,omitempty"`
	SelectedDate         string         `json:"selected_date,omitempty"`
	SelectedUser         string         `json:"selected_user,omitempty"`
	SelectedChannel      string         `json:"selected_channel,omitempty"`
	SelectedConversation string         `json:"selected_conversation,omitempty"`
}

// https://docs.slack.dev/reference/interaction-payloads/view-interactions-payload#view_submission
type ViewSubmission struct {
	InteractionBase

	View         View             `json:"view"`
	ResponseURLs []map[string]any `json:"response_urls,omitempty"`
}

// https://docs.slack.dev/reference/interaction-payloads/view-interactions-payload#view_closed
type ViewClosed struct {
	InteractionBase

	View      View `json:"view"`
	IsCleared bool `json:"is_cleared"`
}

// https://docs.slack.dev/reference/interaction-payloads/block_suggestion-payload
type BlockSuggestion struct {
	InteractionBase

	ActionID  string         `json:"action_id"`
	BlockID   string         `json:"block_id"`
	Value     string         `json:"value"`
	Container map[string]any `json:"container,omitempty"`
	Channel   *Channel       `json:"channel,omitempty"`
	Message   map[string]any `json:"message,omitempty"`
	View      *View          `json:"view,omitempty"`
}

// https://docs.slack.dev/reference/views
type View struct {
	ID              string           `json:"id"`
	TeamID          string           `json:"team_id,omitempty"`
	Type            string           `json:"type"` // "modal" or "home".
	CallbackID      string           `json:"callback_id,omitempty"`
	ExternalID      string           `json:"external_id,omitempty"`
	PrivateMetadata string           `json:"private_metadata,omitempty"`
	Hash            string           `json:"hash,omitempty"`
	AppID           string           `json:"app_id,omitempty"`
	RootViewID      string           `json:"root_view_id,omitempty"`
	PreviousViewID  string           `json:"previous_view_id,omitempty"`
	Blocks          []map[string]any `json:"blocks,omitempty"`
	State           map[string]any   `json:"state,omitempty"`
}

// UnknownInteraction is an interaction with an unrecognized type.
type UnknownInteraction struct {
	Type string
	Raw  json.RawMessage
}

func (BlockActions) InteractionType() string         { return TypeBlockActions }
func (BlockSuggestion) InteractionType() string      { return TypeBlockSuggestion }
func (MessageAction) InteractionType() string        { return TypeMessageAction }
func (Shortcut) InteractionType() string             { return TypeShortcut }
func (ViewClosed) InteractionType() string           { return TypeViewClosed }
func (ViewSubmission) InteractionType() string       { return TypeViewSubmission }
func (i UnknownInteraction) InteractionType() string { return i.Type }

func (BlockActions) isInteraction()       {}
func (BlockSuggestion) isInteraction()    {}
func (MessageAction) isInteraction()      {}
func (Shortcut) isInteraction()           {}
func (ViewClosed) isInteraction()         {}
func (ViewSubmission) isInteraction()     {}
func (UnknownInteraction) isInteraction() {}

func (i BlockActions) MarshalJSON() ([]byte, error) {
	type alias BlockActions
	return marshalTagged(alias(i), "type", TypeBlockActions)
}

func (i BlockSuggestion) MarshalJSON() ([]byte, error) {
	type alias BlockSuggestion
	return marshalTagged(alias(i), "type", TypeBlockSuggestion)
}

func (i MessageAction) MarshalJSON() ([]byte, error) {
	type alias MessageAction
	return marshalTagged(alias(i), "type", TypeMessageAction)
}

func (i Shortcut) MarshalJSON() ([]byte, error) {
	type alias Shortcut
	return marshalTagged(alias(i), "type", TypeShortcut)
}

func (i ViewClosed) MarshalJSON() ([]byte, error) {
	type alias ViewClosed
	return marshalTagged(alias(i), "type", TypeViewClosed)
}

func (i ViewSubmission) MarshalJSON() ([]byte, error) {
	type alias ViewSubmission
	return marshalTagged(alias(i), "type", TypeViewSubmission)
}

func (i UnknownInteraction) MarshalJSON() ([]byte, error) {
	return marshalRaw(i.Raw, "type", i.Type)
}
