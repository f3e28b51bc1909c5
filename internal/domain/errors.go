package domain

import "errors"

var (
	// ErrAuthMissing is returned when a connection presents no credential.
	ErrAuthMissing = errors.New("authentication credential missing")
	// ErrAuthInvalid is returned for a malformed, forged or expired credential.
	ErrAuthInvalid = errors.New("authentication credential invalid")
	// ErrInvalidPayload marks a request that is rejected without touching state.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrPersistenceFailure is returned when the conversation store rejects an append.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrSessionClosed is returned when delivering to a session that has gone away.
	ErrSessionClosed = errors.New("session closed")
)
