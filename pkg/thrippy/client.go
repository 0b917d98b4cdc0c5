package thrippy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	thrippypb "github.com/tzrikka/thrippy-api/thrippy/v1"
)

const (
	timeout = 3 * time.Second

	// SocketModeTemplate is the name of the Thrippy link
	// template that stores the two tokens of a Slack app.
	SocketModeTemplate = "slack-socket-mode"
)

var ErrLinkNotFound = errors.New("Thrippy link not found")

// Connection creates a gRPC client connection to the given Thrippy server address.
// It supports both secure and insecure connections, based on the given credentials.
func Connection(addr string, creds credentials.TransportCredentials) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}

// LinkSecrets returns the saved secrets of a given Thrippy link.
// This function reports gRPC errors, but if the link is not found it returns nothing.
func LinkSecrets(ctx context.Context, grpcAddr string, creds credentials.TransportCredentials, linkID string) (map[string]string, error) {
	l := zerolog.Ctx(ctx)

	conn, err := Connection(grpcAddr, creds)
	if err != nil {
		l.Error().Stack().Err(err).Send()
		return nil, err
	}
	defer conn.Close()

	c := thrippypb.NewThrippyServiceClient(conn)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.GetCredentials(ctx, thrippypb.GetCredentialsRequest_builder{
		LinkId: proto.String(linkID),
	}.Build())
	if err != nil {
		if status.Code(err) != codes.NotFound {
			l.Error().Stack().Err(err).Send()
			return nil, err
		}
		return nil, nil
	}

	return resp.GetCredentials(), nil
}

// LinkTemplate returns the template name of a given Thrippy link. This function
// reports gRPC errors, but if the link is not found it returns an empty string.
func LinkTemplate(ctx context.Context, grpcAddr string, creds credentials.TransportCredentials, linkID string) (string, error) {
	l := zerolog.Ctx(ctx)

	conn, err := Connection(grpcAddr, creds)
	if err != nil {
		l.Error().Stack().Err(err).Send()
		return "", err
	}
	defer conn.Close()

	c := thrippypb.NewThrippyServiceClient(conn)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.GetLink(ctx, thrippypb.GetLinkRequest_builder{
		LinkId: proto.String(linkID),
	}.Build())
	if err != nil {
		if status.Code(err) != codes.NotFound {
			l.Error().Stack().Err(err).Send()
			return "", err
		}
		return "", nil
	}

	return resp.GetTemplate(), nil
}

// SlackTokens returns the app-level token and the bot token
// that are stored in a Thrippy link of the [SocketModeTemplate].
func SlackTokens(ctx context.Context, grpcAddr string, creds credentials.TransportCredentials, linkID string) (appToken, botToken string, err error) {
	template, err := LinkTemplate(ctx, grpcAddr, creds, linkID)
	if err != nil {
		return "", "", err
	}
	if template == "" {
		return "", "", fmt.Errorf("%w: %q", ErrLinkNotFound, linkID)
	}
	if template != SocketModeTemplate {
		return "", "", fmt.Errorf("unexpected template of Thrippy link %q: got %q, want %q", linkID, template, SocketModeTemplate)
	}

	secrets, err := LinkSecrets(ctx, grpcAddr, creds, linkID)
	if err != nil {
		return "", "", err
	}

	appToken, botToken = secrets["app_token"], secrets["bot_token"]
	if appToken == "" {
		return "", "", fmt.Errorf("missing app-level token in Thrippy link %q", linkID)
	}

	return appToken, botToken, nil
}
