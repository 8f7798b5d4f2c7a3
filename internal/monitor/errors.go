package monitor

import (
	"errors"
	"fmt"
)

var (
	ErrClientClosed       = errors.New("monitor: client closed")
	ErrDuplicateRequestID = errors.New("monitor: duplicate request id")
	ErrShortResponse      = errors.New("monitor: short response body")
)

// ConnectionError marks a socket-level failure. It is connection-fatal: every
// request pending on that connection is rejected with it atomically.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("monitor: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError marks a response whose error byte was nonzero. It fails only
// the specific in-flight call that produced it.
type ProtocolError struct {
	Command byte
	Code    byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("monitor: command 0x%02X failed with error code 0x%02X", e.Command, e.Code)
}

// MismatchError marks a correlated response whose type byte does not equal
// the command it answers. It signals stream desynchronization and must
// surface, never be silently accepted.
type MismatchError struct {
	RequestID uint32
	Expected  byte
	Got       byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("monitor: response type 0x%02X for request %d, expected 0x%02X",
		e.Got, e.RequestID, e.Expected)
}
