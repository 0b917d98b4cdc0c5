package slack

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrInvalidAuth = errors.New("invalid Slack app token")
	ErrRateLimited = errors.New("Slack API rate limit")
	ErrTransport   = errors.New("Slack API transport error")
	ErrMalformed   = errors.New("malformed Slack API response")
)

// Error is returned by [Client.OpenConnection]. Its Kind is one of
// [ErrInvalidAuth], [ErrRateLimited], [ErrTransport], or [ErrMalformed],
// so callers can use [errors.Is] to classify it.
type Error struct {
	Kind       error
	Code       string        // Slack API error code, or HTTP status.
	RetryAfter time.Duration // Only when rate-limited, zero if unspecified.
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// https://docs.slack.dev/reference/methods/apps.connections.open#errors
var authErrorCodes = []string{
	"account_inactive",
	"invalid_auth",
	"not_allowed_token_type",
	"not_authed",
	"token_expired",
	"token_revoked",
}

// apiError classifies an error code in a Slack API response.
func apiError(code string, retryAfter time.Duration) *Error {
	switch {
	case slices.Contains(authErrorCodes, code):
		return &Error{Kind: ErrInvalidAuth, Code: code}
	case code == "ratelimited":
		return &Error{Kind: ErrRateLimited, Code: code, RetryAfter: retryAfter}
	default:
		return &Error{Kind: ErrTransport, Code: code}
	}
}
