package core

import "errors"

// Frame is one serialized envelope as it travels on the wire.
type Frame []byte

var (
	// ErrBackpressure means the connection's outbound buffer is full.
	// The frame is dropped, never queued unboundedly.
	ErrBackpressure = errors.New("backpressure")

	// ErrConnClosed means the connection is gone or was never registered.
	ErrConnClosed = errors.New("connection closed")

	// ErrDuplicateClient means the client id is already bound to an open
	// connection and the registry is configured to reject replacements.
	ErrDuplicateClient = errors.New("client already registered")
)

// SignalConnection abstracts the signaling transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend never blocks. It fails with ErrBackpressure when the
	// outbound buffer is full and ErrConnClosed after Close.
	TrySend(Frame) error
	Close()
}
