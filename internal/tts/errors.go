package tts

import "errors"

// Failure kinds surfaced to the transport layer. Each maps to a distinct
// response code; they are never collapsed into a generic error.
var (
	ErrMalformedSelector  = errors.New("invalid voice_id format, use 'provider:voice_name'")
	ErrInvalidInput       = errors.New("text length or speed out of range")
	ErrInsufficientCredit = errors.New("no credits remaining, payment required")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrUnknownVoice       = errors.New("unknown voice")
	ErrSynthesisFailed    = errors.New("failed to generate audio")
)
