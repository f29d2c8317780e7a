package relay

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or was removed
	ErrSessionNotFound = errors.New("session not found")

	// ErrIDExhausted is returned when no unused session id could be generated
	ErrIDExhausted = errors.New("failed to allocate unique session id")

	// ErrInvalidCapacity is returned when a topic capacity is not positive
	ErrInvalidCapacity = errors.New("invalid topic capacity (must be > 0)")

	// ErrUnrecognizedFrame is returned when an outbound frame is neither pipe nor chat
	ErrUnrecognizedFrame = errors.New("unrecognized frame")

	// ErrInvalidTeardownPolicy is returned for an unknown teardown policy name
	ErrInvalidTeardownPolicy = errors.New("invalid teardown policy")

	// ErrInvalidIDStyle is returned for an unknown session id style name
	ErrInvalidIDStyle = errors.New("invalid session id style")
)
