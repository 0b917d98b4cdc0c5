package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackmode/pkg/socketmode"
)

const (
	DefaultPort = 14480

	timeout = 3 * time.Second
)

// Flags defines CLI flags to configure the ops HTTP server. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "ops-port",
			Usage: "local port for the /healthz and /metrics endpoints (0 = disabled)",
			Value: DefaultPort,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACKMODE_OPS_PORT"),
				toml.TOML("ops.port", configFilePath),
			),
		},
	}
}

// StateFunc returns the current state of a Socket Mode client.
type StateFunc func() socketmode.State

// Server exposes the health and metrics of a Socket Mode client over HTTP.
type Server struct {
	port    int
	state   StateFunc
	metrics http.Handler
}

// NewServer initializes an ops HTTP server. The metrics handler is optional.
func NewServer(port int, state StateFunc, metrics http.Handler) *Server {
	return &Server{port: port, state: state, metrics: metrics}
}

// Handler returns the server's HTTP request multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthzHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Run starts the HTTP server. This is blocking, until the
// context is cancelled, and then the server is shut down.
func (s *Server) Run(ctx context.Context) error {
	l := zerolog.Ctx(ctx)

	server := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(s.port)),
		Handler:      s.Handler(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			l.Warn().Err(err).Msg("failed to shut down ops HTTP server")
		}
	}()

	l.Info().Msgf("ops HTTP server listening on port %d", s.port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Err(err).Send()
		return err
	}

	return nil
}

// healthzHandler reports the client's state as JSON. The HTTP status
// is 503 whenever the client isn't connected to Slack.
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	state := s.state()

	status := http.StatusOK
	if !state.Connected {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(state); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to write health response")
	}
}
