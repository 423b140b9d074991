package engine

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect when a connection is
	// already established.
	ErrAlreadyConnected = errors.New("engine is already connected")

	// ErrNoEventTypes is returned by Subscribe when the spec carries an
	// empty event type set.
	ErrNoEventTypes = errors.New("subscription requires at least one event type")
)
