package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/slack-go/slack"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackmode/pkg/http"
	resolver "github.com/tzrikka/slackmode/pkg/slack"
	"github.com/tzrikka/slackmode/pkg/socketmode"
	"github.com/tzrikka/slackmode/pkg/thrippy"
)

// run initializes logging, telemetry, and the Slack clients,
// and then blocks until the command's context is cancelled.
func run(ctx context.Context, cmd *cli.Command) error {
	initLog(cmd.Bool("dev"))
	ctx = log.Logger.WithContext(ctx)

	creds, err := credentials(ctx, cmd)
	if err != nil {
		return err
	}
	log.Info().Object("credentials", creds).Msg("loaded Slack credentials")

	tel, err := initTelemetry(cmd.Root().Version, cmd.Bool("trace-stdout"))
	if err != nil {
		return err
	}
	defer tel.shutdown(context.WithoutCancel(ctx))

	apiURL := cmd.String("slack-api-url")
	api := slack.New(creds.BotToken, slack.OptionAPIURL(apiURL))
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("Slack bot token check failed: %w", err)
	}
	log.Info().Str("team", auth.Team).Str("user", auth.User).Str("bot_id", auth.BotID).
		Msg("authenticated Slack bot")

	opts := []socketmode.Option{
		socketmode.WithResolver(resolver.NewClient(resolver.WithBaseURL(apiURL))),
		socketmode.WithIdleTimeout(cmd.Duration("idle-timeout")),
		socketmode.WithPingTimeout(cmd.Duration("ping-timeout")),
		socketmode.WithMeterProvider(tel.meterProvider),
		socketmode.WithTracerProvider(tel.tracerProvider),
	}
	if cmd.Bool("debug-reconnects") {
		opts = append(opts, socketmode.WithDebugReconnects())
	}
	client := socketmode.New(creds, opts...)

	if port := cmd.Int("ops-port"); port > 0 {
		var cancel context.CancelFunc
		ctx, cancel = serveOps(ctx, http.NewServer(port, client.State, tel.metricsHandler))
		defer cancel()
	}

	err = client.Run(ctx, newHandler(api, auth.UserID))
	if errors.Is(err, resolver.ErrInvalidAuth) {
		return fmt.Errorf("Slack app-level token check failed: %w", err)
	}
	if err == nil {
		err = opsFailure(ctx)
	}
	return err
}

// serveOps runs the ops HTTP server in the background. If the server
// fails, the returned context is cancelled with the server's error.
func serveOps(ctx context.Context, s *http.Server) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		if err := s.Run(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("ops HTTP server failed")
			cancel(fmt.Errorf("ops HTTP server failed: %w", err))
		}
	}()
	return ctx, func() { cancel(nil) }
}

// opsFailure returns the error that [serveOps] cancelled the context with, if any.
func opsFailure(ctx context.Context) error {
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// initLog initializes the logger for the Socket Mode client,
// based on whether it's running in development mode or not.
func initLog(devMode bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if !devMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()

	log.Warn().Msg("********** DEV MODE - UNSAFE IN PRODUCTION! **********")
}

// credentials returns the Slack tokens from the first source that has them:
// positional command-line arguments, flags (or environment variables, or
// the configuration file), or a Thrippy link.
func credentials(ctx context.Context, cmd *cli.Command) (socketmode.Credentials, error) {
	if cmd.Args().Len() > 0 {
		if cmd.Args().Len() != 2 {
			return socketmode.Credentials{}, errors.New("expected 2 arguments: app-token bot-token")
		}
		return socketmode.Credentials{AppToken: cmd.Args().Get(0), BotToken: cmd.Args().Get(1)}, nil
	}

	creds := socketmode.Credentials{AppToken: cmd.String("app-token"), BotToken: cmd.String("bot-token")}
	if creds.AppToken != "" && creds.BotToken != "" {
		return creds, nil
	}

	linkID := cmd.String("thrippy-link-id")
	if linkID == "" {
		return creds, errors.New("missing Slack tokens: specify them as arguments, flags, or a Thrippy link")
	}

	app, bot, err := thrippy.SlackTokens(ctx, cmd.String("thrippy-server-addr"), thrippy.SecureCreds(cmd), linkID)
	if err != nil {
		return creds, fmt.Errorf("failed to get Slack tokens from Thrippy: %w", err)
	}

	if creds.AppToken == "" {
		creds.AppToken = app
	}
	if creds.BotToken == "" {
		creds.BotToken = bot
	}
	if creds.BotToken == "" {
		return creds, errors.New("missing Slack bot token")
	}

	return creds, nil
}
