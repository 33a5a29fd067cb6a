package connection

import "errors"

var (
	// ErrNotStarted is returned when an operation needs a Started connection.
	ErrNotStarted = errors.New("connection not started")
	// ErrAlreadyStarted is returned by Start on a connection that left Created.
	ErrAlreadyStarted = errors.New("connection already started or terminated")
	// ErrDisconnected is returned by Writer.Write when the publisher is no longer live.
	ErrDisconnected = errors.New("connection disconnected")
	// ErrSerialization is returned by Writer.Write when the message cannot be encoded.
	ErrSerialization = errors.New("message serialization failed")
	// ErrManagerClosed is returned by Start after the owning Manager was shut down.
	ErrManagerClosed = errors.New("connection manager shut down")
	// ErrInvalidConfiguration is returned by NewConfiguration and Validate.
	ErrInvalidConfiguration = errors.New("invalid channel configuration")
)
