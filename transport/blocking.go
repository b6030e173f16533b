// Package transport adapts blocking buses to the resumable i2cdev.Transport.
package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mklimuk/i2cdev"
)

var _ i2cdev.Transport = &Blocking{}
var _ i2cdev.Forgetter = &Blocking{}

// Blocking runs the whole transfer inside StartTransfer and reports the stored
// outcome on the next poll. It suits buses without completion interrupts,
// where the cooperative loop simply absorbs the transfer time.
type Blocking struct {
	mx      sync.Mutex
	bus     i2cdev.Bus
	ctx     context.Context
	logger  *slog.Logger
	next    i2cdev.TransferHandle
	results map[i2cdev.TransferHandle]i2cdev.TransferStatus
}

type Option func(*options)

type options struct {
	ctx    context.Context
	logger *slog.Logger
	depth  int
}

// WithContext sets the context handed to the bus for every transfer.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDepth sets how many transfers a Queue accepts before reporting the bus busy.
func WithDepth(depth int) Option {
	return func(o *options) {
		o.depth = depth
	}
}

func newOptions(opts []Option) options {
	o := options{
		ctx:    context.Background(),
		logger: slog.Default(),
		depth:  8,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewBlocking(bus i2cdev.Bus, opts ...Option) *Blocking {
	o := newOptions(opts)
	return &Blocking{
		bus:     bus,
		ctx:     o.ctx,
		logger:  o.logger,
		results: make(map[i2cdev.TransferHandle]i2cdev.TransferStatus),
	}
}

func (b *Blocking) StartTransfer(address byte, w, r []byte) (i2cdev.TransferHandle, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	err := b.bus.Tx(b.ctx, address, w, r)
	status := i2cdev.StatusFromError(err)
	if err != nil {
		b.logger.Debug("transfer failed", "address", address, "status", status, "error", err)
	}
	b.next++
	b.results[b.next] = status
	return b.next, nil
}

func (b *Blocking) PollTransfer(h i2cdev.TransferHandle) i2cdev.TransferStatus {
	b.mx.Lock()
	defer b.mx.Unlock()
	status, ok := b.results[h]
	if !ok {
		return i2cdev.TransferBusError
	}
	delete(b.results, h)
	return status
}

func (b *Blocking) Forget(h i2cdev.TransferHandle) {
	b.mx.Lock()
	defer b.mx.Unlock()
	delete(b.results, h)
}

// Len returns the number of transfers whose outcome has not been collected.
func (b *Blocking) Len() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.results)
}
