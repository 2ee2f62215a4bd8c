package peer

import (
	"errors"
	"fmt"
)

var (
	ErrSignalingConnection = errors.New("signaling connection lost")
	ErrPeerConnection      = errors.New("peer connection failed")
	ErrPeerLeft            = errors.New("peer left the room")
	ErrInvalidTransition   = errors.New("invalid state transition")
)

// ConnectionError records the operation a connection attempt failed in.
type ConnectionError struct {
	Op      string
	Err     error
	Details string
}

func (e *ConnectionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *ConnectionError {
	return &ConnectionError{Op: op, Err: err, Details: details}
}
