package client

import (
	"errors"
	"fmt"

	"github.com/fluxbase/flux-go/pkg/protocol"
)

// Sentinel errors for operation and connection failures.
var (
	// ErrClientClosed is returned when an operation is attempted on a closed
	// client, and is the cancellation error pending operations fail with on
	// Close.
	ErrClientClosed = errors.New("flux: client closed")

	// ErrTimeout is returned when a one-shot operation's deadline elapsed
	// with no matching response. It affects only that operation.
	ErrTimeout = errors.New("flux: request timed out")

	// ErrGiveUp is reported once the reconnect attempt ceiling is reached.
	// Manual Reconnect resets the counter and tries again.
	ErrGiveUp = errors.New("flux: reconnect attempts exhausted")

	// ErrReconnectTimeout is returned by Reconnect when the connection did
	// not reach Connected within the caller's wait.
	ErrReconnectTimeout = errors.New("flux: reconnect did not complete")
)

// ApplicationError is a failure reported by the UDF itself, as opposed to a
// transport or protocol failure. Data optionally carries the structured
// error payload the function threw.
type ApplicationError struct {
	UDFPath string
	Message string
	Data    *protocol.Value
}

// Error returns the error message.
func (e *ApplicationError) Error() string {
	if e.UDFPath != "" {
		return fmt.Sprintf("flux: %s failed: %s", e.UDFPath, e.Message)
	}
	return fmt.Sprintf("flux: function failed: %s", e.Message)
}

// ProtocolError is a FatalError the server sent for the current socket.
// The socket is closed and the normal reconnect path decides whether a fresh
// session is attempted.
type ProtocolError struct {
	Message string
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return "flux: fatal protocol error: " + e.Message
}
