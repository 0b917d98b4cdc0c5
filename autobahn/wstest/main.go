// wstest runs the [WebSocket transport] of the Socket Mode client
// against the [Autobahn Testsuite]'s fuzzing server.
//
// [WebSocket transport]: https://pkg.go.dev/github.com/tzrikka/slackmode/pkg/websocket
// [Autobahn Testsuite]: https://github.com/crossbario/autobahn-testsuite
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tzrikka/slackmode/pkg/websocket"
)

const (
	base  = "ws://127.0.0.1:9001"
	agent = "slackmode"
)

func main() {
	initZeroLog()
	ctx := log.Logger.WithContext(context.Background())

	n := getCaseCount(ctx)
	log.Info().Int("n", n).Msg("case count")

	// Not implemented (so excluded in "config/fuzzingserver.json"):
	// - 6.4.*: Fail-fast on invalid UTF-8 frames
	// - 12.* and 13.*: WebSocket compression
	for i := range n {
		runCase(ctx, i+1)
	}

	updateReports(ctx)
}

func initZeroLog() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()
}

func dial(ctx context.Context, url string) *websocket.Conn {
	conn, err := websocket.Dial(ctx, url)
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("websocket.Dial error")
	}
	return conn
}

// nextDataMessage skips control frames, which the connection
// already answers on its own, and returns the next data message.
func nextDataMessage(conn *websocket.Conn) (websocket.Message, bool) {
	for msg := range conn.IncomingMessages() {
		if msg.Opcode == websocket.OpcodeText || msg.Opcode == websocket.OpcodeBinary {
			return msg, true
		}
	}
	return websocket.Message{}, false
}

func getCaseCount(ctx context.Context) int {
	conn := dial(ctx, base+"/getCaseCount")

	msg, ok := nextDataMessage(conn)
	if !ok {
		log.Fatal().Msg("connection closed before receiving the case count")
	}

	n, err := strconv.Atoi(string(msg.Data))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid test case count")
	}

	conn.Close(websocket.StatusNormalClosure)
	return n
}

func runCase(ctx context.Context, i int) {
	log.Info().Int("case", i).Msg("starting test")
	conn := dial(ctx, fmt.Sprintf("%s/runCase?case=%d&agent=%s", base, i, agent))

	// Echo loop.
	for {
		msg, ok := nextDataMessage(conn)
		if !ok {
			log.Debug().Int("case", i).Msg("connection closed")
			break
		}

		log.Debug().Int("case", i).Stringer("opcode", msg.Opcode).
			Int("length", len(msg.Data)).Msg("received message")

		var err error
		if msg.Opcode == websocket.OpcodeText {
			err = <-conn.SendTextMessage(msg.Data)
		} else {
			err = <-conn.SendBinaryMessage(msg.Data)
		}

		if err != nil {
			log.Err(err).Int("case", i).Stringer("opcode", msg.Opcode).Msg("echo error")
			conn.Close(websocket.StatusNormalClosure)
		}
	}

	<-conn.Done()
}

func updateReports(ctx context.Context) {
	log.Info().Msg("updating reports")
	conn := dial(ctx, fmt.Sprintf("%s/updateReports?agent=%s", base, agent))

	if _, ok := nextDataMessage(conn); !ok {
		log.Debug().Msg("connection closed")
	}
	<-conn.Done()
}
