package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	nws "nhooyr.io/websocket"

	"github.com/tzrikka/slackmode/pkg/events"
	resolver "github.com/tzrikka/slackmode/pkg/slack"
	"github.com/tzrikka/slackmode/pkg/socketmode"
)

type fakePoster struct {
	channels []string
	err      error
}

func (f *fakePoster) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	return channelID, "1700000000.000200", f.err
}

func TestHandlerAppMention(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  int
	}{
		{
			name:  "mention",
			frame: `{"type":"events_api","envelope_id":"e1","payload":{"type":"event_callback","event_id":"Ev1","event":{"type":"app_mention","user":"U1","channel":"C1","text":"<@UBOT> hi","ts":"1.2"}}}`,
			want:  1,
		},
		{
			name:  "self_mention",
			frame: `{"type":"events_api","envelope_id":"e2","payload":{"type":"event_callback","event_id":"Ev2","event":{"type":"app_mention","user":"UBOT","channel":"C1","text":"<@UBOT>","ts":"1.3"}}}`,
		},
		{
			name:  "other_event",
			frame: `{"type":"events_api","envelope_id":"e3","payload":{"type":"event_callback","event_id":"Ev3","event":{"type":"reaction_added","user":"U1","reaction":"tada","item":{"type":"message","channel":"C1","ts":"1.4"},"event_ts":"1.5"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := events.Parse([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			ev, ok := e.(*events.EventsAPI)
			if !ok {
				t.Fatalf("Parse() = %T, want *events.EventsAPI", e)
			}

			p := &fakePoster{}
			newHandler(p, "UBOT").OnEventsAPI(t.Context(), ev, nil)

			if len(p.channels) != tt.want {
				t.Errorf("PostMessageContext() calls = %d, want %d", len(p.channels), tt.want)
			}
		})
	}
}

func TestHandlerNilTokens(t *testing.T) {
	h := newHandler(&fakePoster{}, "UBOT")
	ctx := t.Context()

	h.OnHello(ctx, &events.Hello{NumConnections: 1})
	h.OnDisconnect(ctx, &events.Disconnect{Reason: "refresh_requested"})
	h.OnInteractive(ctx, &events.Interactive{Payload: &events.Shortcut{CallbackID: "cb"}}, nil)
	h.OnSlashCommands(ctx, &events.SlashCommands{Payload: events.SlashCommand{Command: "/cmd"}}, nil)
	h.OnUnknown(ctx, &events.Unknown{Type: "future"}, nil)
}

type staticResolver string

func (r staticResolver) OpenConnection(context.Context, string) (*resolver.Grant, error) {
	return &resolver.Grant{URL: string(r)}, nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestHandlerAcksExplicitly runs the handler behind a real client, and checks
// that envelopes which don't get a reply are still acknowledged by the handler
// itself, rather than automatically by the client.
func TestHandlerAcksExplicitly(t *testing.T) {
	frames := []string{
		`{"type":"hello","num_connections":1,"connection_info":{"app_id":"A1"}}`,
		`{"type":"events_api","envelope_id":"e1","payload":{"type":"event_callback","event_id":"Ev1","event":{"type":"reaction_added","user":"U1","reaction":"tada","item":{"type":"message","channel":"C1","ts":"1.4"},"event_ts":"1.5"}}}`,
		`{"type":"events_api","envelope_id":"e2","payload":{"type":"event_callback","event_id":"Ev2","event":{"type":"app_mention","user":"UBOT","channel":"C1","text":"<@UBOT>","ts":"1.3"}}}`,
		`{"type":"interactive","envelope_id":"e3","payload":{"type":"shortcut","callback_id":"cb","user":{"id":"U1"}}}`,
		`{"type":"future_type","envelope_id":"e4","payload":{}}`,
	}
	const wantAcks = 4

	acks := make(chan string, wantAcks)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := nws.Accept(w, r, nil)
		if err != nil {
			t.Errorf("websocket.Accept() error = %v", err)
			return
		}
		defer c.CloseNow()

		ctx := context.WithoutCancel(r.Context())
		for _, f := range frames {
			if err := c.Write(ctx, nws.MessageText, []byte(f)); err != nil {
				t.Errorf("websocket.Write() error = %v", err)
				return
			}
		}
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			var a struct {
				EnvelopeID string `json:"envelope_id"`
			}
			if err := json.Unmarshal(data, &a); err == nil {
				acks <- a.EnvelopeID
			}
		}
	}))
	defer s.Close()

	buf := &lockedBuffer{}
	ctx, cancel := context.WithCancel(zerolog.New(buf).WithContext(t.Context()))
	defer cancel()

	creds := socketmode.Credentials{AppToken: "xapp-test", BotToken: "xoxb-test"}
	client := socketmode.New(creds, socketmode.WithResolver(staticResolver("ws"+strings.TrimPrefix(s.URL, "http"))))
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx, newHandler(&fakePoster{}, "UBOT"))
	}()

	got := map[string]bool{}
	for len(got) < wantAcks {
		select {
		case id := <-acks:
			got[id] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("received acks %v, want %d", got, wantAcks)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timeout while waiting for Run() to return")
	}

	logs := buf.String()
	for _, msg := range []string{"sent automatic ack", "failed to ack"} {
		if strings.Contains(logs, msg) {
			t.Errorf("logs contain %q:\n%s", msg, logs)
		}
	}
}
