package transaction

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation is the root of all caller misuse errors. They are raised
// before anything is sent on the bus.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrTransportFailure wraps NAK, bus busy and bus errors reported while a
// transaction was on the bus.
var ErrTransportFailure = errors.New("transport failure")

var (
	ErrInFlight      = fmt.Errorf("%w: transaction already in flight", ErrProtocolViolation)
	ErrStaleHandle   = fmt.Errorf("%w: handle does not refer to the live transaction", ErrProtocolViolation)
	ErrEmptyRead     = fmt.Errorf("%w: read of zero bytes", ErrProtocolViolation)
	ErrBurstTooLong  = fmt.Errorf("%w: burst exceeds device limit", ErrProtocolViolation)
	ErrPointerFormat = fmt.Errorf("%w: register does not fit the pointer width", ErrProtocolViolation)
)

// BurstError reports a burst longer than the configured maximum.
type BurstError struct {
	Kind      Kind
	Requested int
	Max       int
}

func (e *BurstError) Error() string {
	return fmt.Sprintf("%s burst of %d bytes exceeds maximum of %d", e.Kind, e.Requested, e.Max)
}

func (e *BurstError) Unwrap() error {
	return ErrBurstTooLong
}
