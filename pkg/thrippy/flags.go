package thrippy

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	DefaultServerAddr = "localhost:14460"
)

// Flags defines CLI flags to configure a Thrippy gRPC client. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "thrippy-server-addr",
			Usage: "Thrippy gRPC server address",
			Value: DefaultServerAddr,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_ADDR"),
				toml.TOML("thrippy.server_addr", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "thrippy-link-id",
			Usage: "Thrippy link ID with Slack Socket Mode tokens",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_LINK_ID"),
				toml.TOML("thrippy.link_id", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "thrippy-client-cert",
			Usage: "Thrippy gRPC client's public certificate PEM file (mTLS only)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_CLIENT_CERT"),
				toml.TOML("thrippy.client_cert", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-client-key",
			Usage: "Thrippy gRPC client's private key PEM file (mTLS only)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_CLIENT_KEY"),
				toml.TOML("thrippy.client_key", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-server-ca-cert",
			Usage: "Thrippy gRPC server's CA certificate PEM file (both TLS and mTLS)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_CA_CERT"),
				toml.TOML("thrippy.server_ca_cert", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-server-name-override",
			Usage: "Thrippy gRPC server's name override, for testing only (both TLS and mTLS)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_NAME_OVERRIDE"),
				toml.TOML("thrippy.server_name_override", configFilePath),
			),
		},
	}
}

// SecureCreds initializes gRPC client credentials, based on CLI flags.
// Insecure credentials are used only in dev mode, or if no certificates
// are configured. Errors in reading the certificate files are fatal.
func SecureCreds(cmd *cli.Command) credentials.TransportCredentials {
	if cmd.Bool("dev") {
		return insecureCreds()
	}

	caPath := cmd.String("thrippy-server-ca-cert")
	if caPath == "" {
		log.Warn().Msg("no Thrippy server CA certificate, using insecure gRPC credentials")
		return insecureCreds()
	}

	creds, err := tlsCreds(caPath, cmd.String("thrippy-client-cert"), cmd.String("thrippy-client-key"),
		cmd.String("thrippy-server-name-override"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Thrippy gRPC credentials")
	}

	return creds
}

func insecureCreds() credentials.TransportCredentials {
	return insecure.NewCredentials()
}

// tlsCreds supports both TLS (server authentication only) and mTLS,
// if a client certificate and private key are also specified.
func tlsCreds(caPath, certPath, keyPath, serverName string) (credentials.TransportCredentials, error) {
	pem, err := os.ReadFile(caPath) //nolint:gosec // Path from trusted configuration.
	if err != nil {
		return nil, fmt.Errorf("failed to read server CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("failed to parse server CA certificate")
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS13,
	}

	if certPath != "" || keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return credentials.NewTLS(cfg), nil
}
