package domain

import "errors"

var (
	ErrMalformedPayload       = errors.New("malformed payload")
	ErrUnsupportedMessageKind = errors.New("unsupported message kind")
	ErrInvalidEvent           = errors.New("invalid inbound event")
	ErrPublishUnavailable     = errors.New("notes API unavailable")
	ErrPublishRejected        = errors.New("notes API rejected note")
)
