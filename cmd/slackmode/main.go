package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackmode/pkg/http"
	"github.com/tzrikka/slackmode/pkg/socketmode"
	"github.com/tzrikka/slackmode/pkg/thrippy"
	"github.com/tzrikka/xdg"
)

const (
	ConfigDirName  = "slackmode"
	ConfigFileName = "config.toml"
)

func main() {
	buildInfo, _ := debug.ReadBuildInfo()
	configFilePath := configFile()

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "simple setup, but unsafe for production",
		},
	}
	flags = append(flags, slackFlags(configFilePath)...)
	flags = append(flags, http.Flags(configFilePath)...)
	flags = append(flags, thrippy.Flags(configFilePath)...)

	cmd := &cli.Command{
		Name:      "slackmode",
		Usage:     "Receive Slack events, interactions, and slash commands over Socket Mode",
		ArgsUsage: "[app-token bot-token]",
		Version:   buildInfo.Main.Version,
		Flags:     flags,
		Action:    run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Run(ctx, os.Args)
	stop()

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// slackFlags defines CLI flags to configure the Socket Mode client. These flags can
// also be set using environment variables and the application's configuration file.
func slackFlags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "app-token",
			Usage: "Slack app-level token (xapp-...)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_APP_TOKEN"),
				toml.TOML("slack.app_token", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "bot-token",
			Usage: "Slack bot token (xoxb-...)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_BOT_TOKEN"),
				toml.TOML("slack.bot_token", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-api-url",
			Usage: "Slack Web API base URL",
			Value: "https://slack.com/api/",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_API_URL"),
				toml.TOML("slack.api_url", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "idle-timeout",
			Usage: "send a ping after this much silence",
			Value: socketmode.DefaultIdleTimeout,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACKMODE_IDLE_TIMEOUT"),
				toml.TOML("socketmode.idle_timeout", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "ping-timeout",
			Usage: "reconnect if there's no pong after this long",
			Value: socketmode.DefaultPingTimeout,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACKMODE_PING_TIMEOUT"),
				toml.TOML("socketmode.ping_timeout", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "debug-reconnects",
			Usage: "ask Slack to disconnect frequently, to exercise reconnections",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACKMODE_DEBUG_RECONNECTS"),
				toml.TOML("socketmode.debug_reconnects", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "trace-stdout",
			Usage: "print OpenTelemetry spans to stdout",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACKMODE_TRACE_STDOUT"),
				toml.TOML("otel.trace_stdout", configFilePath),
			),
		},
	}
}

// configFile returns the path to the app's configuration file.
// It also creates an empty file if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, ConfigDirName, ConfigFileName)
	if err != nil {
		log.Fatal().Err(err).Caller().Send()
	}
	return altsrc.StringSourcer(path)
}
