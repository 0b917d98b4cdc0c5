package events

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	base := InteractionBase{
		Team:      &Team{ID: "T1", Domain: "acme"},
		User:      User{ID: "U1", Username: "alice", TeamID: "T1"},
		APIAppID:  "A1",
		Token:     "tok",
		TriggerID: "1.2.3",
	}
	callback := func(e InnerEvent) EventCallback {
		return EventCallback{
			Token:     "tok",
			TeamID:    "T1",
			APIAppID:  "A1",
			Type:      "event_callback",
			EventID:   "Ev1",
			EventTime: 1665341482,
			Authorizations: []Authorization{
				{TeamID: "T1", UserID: "U9", IsBot: true},
			},
			Event: e,
		}
	}
	header := Header{EnvelopeID: "env-1"}

	tests := []struct {
		name string
		v    Event
	}{
		{
			name: "hello",
			v:    &Hello{NumConnections: 2, ConnectionInfo: ConnectionInfo{AppID: "A1"}},
		},
		{
			name: "disconnect",
			v:    &Disconnect{Reason: "warning", DebugInfo: &DebugInfo{Host: "h"}},
		},
		{
			name: "plain_message",
			v: &EventsAPI{Header: Header{EnvelopeID: "env-2", RetryAttempt: 1, RetryReason: "timeout"}, Payload: callback(&Message{
				User: "U1", Channel: "C1", Text: "hi", TS: "1355517523.000005", ThreadTS: "1355517520.000001",
				Blocks: []map[string]any{{"type": "rich_text", "block_id": "b1"}},
			})},
		},
		{
			name: "bot_message",
			v: &EventsAPI{Header: header, Payload: callback(&BotMessage{
				BotID: "B04488SU0P8", Username: "Robot", Text: "this is a bot event", TS: "1665341482.399349",
			})},
		},
		{
			name: "me_message",
			v:    &EventsAPI{Header: header, Payload: callback(&MeMessage{User: "U1", Text: "waves", TS: "1.1"})},
		},
		{
			name: "message_changed",
			v: &EventsAPI{Header: header, Payload: callback(&MessageChanged{
				Hidden: true, Channel: "C2147483705", TS: "1358878755.000001",
				Message: &NestedMessage{
					Type: "message", User: "U2147483697", Text: "Hello, world!", TS: "1355517523.000005",
					Edited: &Edited{User: "U2147483697", TS: "1358878755.000001"},
				},
				PreviousMessage: &NestedMessage{Type: "message", User: "U2147483697", Text: "Hello", TS: "1355517523.000005"},
			})},
		},
		{
			name: "message_deleted",
			v: &EventsAPI{Header: header, Payload: callback(&MessageDeleted{
				Hidden: true, Channel: "C1", TS: "2.2", DeletedTS: "1.1",
				PreviousMessage: &NestedMessage{Type: "message", Text: "gone", TS: "1.1"},
			})},
		},
		{
			name: "message_replied",
			v: &EventsAPI{Header: header, Payload: callback(&MessageReplied{
				Hidden: true, Channel: "C1", TS: "3.3",
				Message: &NestedMessage{Type: "message", Text: "root", TS: "1.1", ThreadTS: "1.1", ReplyCount: 2, ReplyUsers: []string{"U1", "U2"}},
			})},
		},
		{
			name: "thread_broadcast",
			v: &EventsAPI{Header: header, Payload: callback(&ThreadBroadcast{
				User: "U1", Text: "also sent to channel", TS: "4.4", ThreadTS: "1.1",
				Root: &NestedMessage{Text: "root", TS: "1.1"},
			})},
		},
		{
			name: "file_share",
			v: &EventsAPI{Header: header, Payload: callback(&FileShare{
				User: "U1", Text: "", TS: "5.5", Upload: true, Files: []File{{ID: "F1", Name: "a.png", Size: 10}},
			})},
		},
		{
			name: "channel_join",
			v:    &EventsAPI{Header: header, Payload: callback(&ChannelJoin{User: "U1", Inviter: "U2", Text: "<@U1> has joined", TS: "6.6"})},
		},
		{
			name: "channel_leave",
			v:    &EventsAPI{Header: header, Payload: callback(&ChannelLeave{User: "U1", Text: "<@U1> has left", TS: "7.7"})},
		},
		{
			name: "unknown_message",
			v: &EventsAPI{Header: header, Payload: callback(&UnknownMessage{
				Subtype: "huddle_thread", Raw: json.RawMessage(`{"type":"message","subtype":"huddle_thread","ts":"8.8"}`),
			})},
		},
		{
			name: "app_mention",
			v:    &EventsAPI{Header: header, Payload: callback(&AppMention{User: "U1", Channel: "C1", Text: "<@U9> hi", TS: "9.9", EventTS: "9.9"})},
		},
		{
			name: "app_home_opened",
			v:    &EventsAPI{Header: header, Payload: callback(&AppHomeOpened{User: "U1", Channel: "D1", Tab: "home", EventTS: "1.0"})},
		},
		{
			name: "channel_created",
			v: &EventsAPI{Header: header, Payload: callback(&ChannelCreated{
				Channel: ChannelInfo{ID: "C1", Name: "fun", Created: 1360782804, Creator: "U1"},
			})},
		},
		{
			name: "channel_rename",
			v:    &EventsAPI{Header: header, Payload: callback(&ChannelRename{Channel: ChannelInfo{ID: "C1", Name: "more-fun", Created: 1360782804}})},
		},
		{
			name: "channel_archive",
			v:    &EventsAPI{Header: header, Payload: callback(&ChannelArchive{Channel: "C1", User: "U1"})},
		},
		{
			name: "channel_unarchive",
			v:    &EventsAPI{Header: header, Payload: callback(&ChannelUnarchive{Channel: "C1", User: "U1"})},
		},
		{
			name: "member_joined_channel",
			v: &EventsAPI{Header: header, Payload: callback(&MemberJoinedChannel{
				User: "U1", Channel: "C1", ChannelType: "C", Team: "T1", Inviter: "U2",
			})},
		},
		{
			name: "member_left_channel",
			v:    &EventsAPI{Header: header, Payload: callback(&MemberLeftChannel{User: "U1", Channel: "C1", ChannelType: "C", Team: "T1"})},
		},
		{
			name: "reaction_added",
			v: &EventsAPI{Header: header, Payload: callback(&ReactionAdded{
				User: "U1", Reaction: "thumbsup", ItemUser: "U2", EventTS: "1.2",
				Item: ReactionItem{Type: "message", Channel: "C1", TS: "1.1"},
			})},
		},
		{
			name: "reaction_removed",
			v: &EventsAPI{Header: header, Payload: callback(&ReactionRemoved{
				User: "U1", Reaction: "thumbsup", EventTS: "1.3", Item: ReactionItem{Type: "file", File: "F1"},
			})},
		},
		{
			name: "team_join",
			v:    &EventsAPI{Header: header, Payload: callback(&TeamJoin{User: TeamMember{ID: "U3", TeamID: "T1", Name: "carol"}})},
		},
		{
			name: "unknown_event",
			v: &EventsAPI{Header: header, Payload: callback(&UnknownEvent{
				Type: "pin_added", Raw: json.RawMessage(`{"type":"pin_added","user":"U1"}`),
			})},
		},
		{
			name: "shortcut",
			v:    &Interactive{Header: header, Payload: &Shortcut{InteractionBase: base, CallbackID: "cb", ActionTS: "1.1"}},
		},
		{
			name: "message_action",
			v: &Interactive{Header: Header{EnvelopeID: "env-3", AcceptsResponsePayload: true}, Payload: &MessageAction{
				InteractionBase: base, CallbackID: "cb", MessageTS: "1.1", Channel: &Channel{ID: "C1", Name: "general"},
				Message: map[string]any{"text": "hi", "ts": "1.1"},
			}},
		},
		{
			name: "block_actions",
			v: &Interactive{Header: header, Payload: &BlockActions{
				InteractionBase: base,
				Container:       map[string]any{"type": "message", "message_ts": "1.1"},
				ResponseURL:     "https://hooks.slack.com/actions/1",
				Actions: []BlockAction{
					{Type: "button", ActionID: "approve", BlockID: "b1", Value: "yes", ActionTS: "1.2"},
					{Type: "static_select", ActionID: "pick", BlockID: "b2", SelectedOption: map[string]any{"value": "v1"}},
				},
			}},
		},
		{
			name: "view_submission",
			v: &Interactive{Header: Header{EnvelopeID: "env-4", AcceptsResponsePayload: true}, Payload: &ViewSubmission{
				InteractionBase: base,
				View: View{
					ID: "V1", Type: "modal", CallbackID: "form", PrivateMetadata: "meta",
					State: map[string]any{"values": map[string]any{"b1": map[string]any{"a1": map[string]any{"value": "x"}}}},
				},
			}},
		},
		{
			name: "view_closed",
			v:    &Interactive{Header: header, Payload: &ViewClosed{InteractionBase: base, View: View{ID: "V1", Type: "modal"}, IsCleared: true}},
		},
		{
			name: "block_suggestion",
			v: &Interactive{Header: header, Payload: &BlockSuggestion{
				InteractionBase: base, ActionID: "a1", BlockID: "b1", Value: "que",
			}},
		},
		{
			name: "unknown_interaction",
			v: &Interactive{Header: header, Payload: &UnknownInteraction{
				Type: "workflow_step_edit", Raw: json.RawMessage(`{"type":"workflow_step_edit","callback_id":"x"}`),
			}},
		},
		{
			name: "slash_commands",
			v: &SlashCommands{Header: Header{EnvelopeID: "env-5", AcceptsResponsePayload: true}, Payload: SlashCommand{
				Token: "tok", TeamID: "T1", TeamDomain: "acme", ChannelID: "C1", ChannelName: "general",
				UserID: "U1", UserName: "alice", Command: "/todo", Text: "buy milk", APIAppID: "A1",
				IsEnterpriseInstall: "false", ResponseURL: "https://hooks.slack.com/commands/1", TriggerID: "1.2.3",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if !strings.Contains(string(b), `"type":"`+tt.v.EnvelopeType()+`"`) {
				t.Errorf("json.Marshal() = %s, missing envelope type", b)
			}

			got, err := Parse(b)
			if err != nil {
				t.Fatalf("Parse(%s) error = %v", b, err)
			}
			if !reflect.DeepEqual(got, tt.v) {
				t.Errorf("Parse(json.Marshal(v)) = %#v, want %#v", got, tt.v)
			}
		})
	}
}

func TestMarshalTagged(t *testing.T) {
	b, err := json.Marshal(&BotMessage{BotID: "B1", Text: "t", TS: "1.1"})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	want := `{"type":"message","subtype":"bot_message","bot_id":"B1","text":"t","ts":"1.1"}`
	if string(b) != want {
		t.Errorf("json.Marshal() = %s, want %s", b, want)
	}
}
