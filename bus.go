package i2cdev

import (
	"context"
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")
var ErrNAK = fmt.Errorf("device did not acknowledge")
var ErrBusError = fmt.Errorf("bus error")

// Bus issues one addressed transfer and blocks until it completes.
// A non-empty w followed by a non-empty r is sent as write, repeated start, read.
// Empty w and r address the device only, which is how presence is probed.
type Bus interface {
	Tx(ctx context.Context, address byte, w, r []byte) error
}

type TransferStatus int

const (
	TransferPending TransferStatus = iota
	TransferOK
	TransferNAK
	TransferBusError
	// TransferBusy: the bus or adapter refused the transfer; retrying later may succeed.
	TransferBusy
)

func (s TransferStatus) String() string {
	switch s {
	case TransferPending:
		return "pending"
	case TransferOK:
		return "ok"
	case TransferNAK:
		return "nak"
	case TransferBusError:
		return "bus error"
	case TransferBusy:
		return "busy"
	default:
		return fmt.Sprintf("TransferStatus(%d)", int(s))
	}
}

// Done reports whether the transfer has reached a terminal status.
func (s TransferStatus) Done() bool {
	return s != TransferPending
}

// Err converts a terminal status into the matching sentinel error.
func (s TransferStatus) Err() error {
	switch s {
	case TransferOK, TransferPending:
		return nil
	case TransferNAK:
		return ErrNAK
	case TransferBusy:
		return ErrBusBusy
	default:
		return ErrBusError
	}
}

// TransferHandle identifies a transfer started on a Transport.
type TransferHandle uint32

// Transport is the resumable side of the bus. StartTransfer never waits for the
// bus; completion is observed through PollTransfer.
// Implementations serialize transfers of all devices sharing the bus.
type Transport interface {
	StartTransfer(address byte, w, r []byte) (TransferHandle, error)
	PollTransfer(h TransferHandle) TransferStatus
}

// Forgetter is implemented by transports that keep per-transfer state until the
// transfer is polled to completion. Forget drops a transfer nobody will poll
// again; its read data, if any, is discarded.
type Forgetter interface {
	Forget(h TransferHandle)
}

// StatusFromError maps a bus error chain onto a terminal transfer status.
func StatusFromError(err error) TransferStatus {
	switch {
	case err == nil:
		return TransferOK
	case errors.Is(err, ErrNAK):
		return TransferNAK
	case errors.Is(err, ErrBusBusy):
		return TransferBusy
	default:
		return TransferBusError
	}
}
