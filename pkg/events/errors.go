package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownType  = errors.New("unknown envelope type")
	ErrMalformed    = errors.New("malformed frame")
	ErrMissingField = errors.New("missing required field")
)

// ParseError describes why [Parse] rejected a frame. Its Kind is one of
// [ErrUnknownType], [ErrMalformed], or [ErrMissingField], so callers can
// use [errors.Is] to classify it.
type ParseError struct {
	Kind       error
	Type       string // Envelope type, if it was decoded.
	EnvelopeID string // If it was decoded.
	Field      string // Name of the missing field, if any.
	Payload    json.RawMessage
	Err        error

	header Header
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	switch {
	case e.Field != "":
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	case errors.Is(e.Kind, ErrUnknownType):
		msg = fmt.Sprintf("%s %q", msg, e.Type)
	}

	if e.Type != "" && !errors.Is(e.Kind, ErrUnknownType) {
		msg = fmt.Sprintf("%s in %q envelope", msg, e.Type)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Is(target error) bool {
	return target == e.Kind
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Unknown returns the envelope that caused an [ErrUnknownType] error,
// or nil if the error is of a different kind.
func (e *ParseError) Unknown() *Unknown {
	if !errors.Is(e.Kind, ErrUnknownType) {
		return nil
	}
	return &Unknown{Type: e.Type, Header: e.header, Payload: e.Payload}
}
