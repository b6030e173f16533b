package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mklimuk/i2cdev"
)

var ErrClosed = errors.New("transport closed")

var _ i2cdev.Transport = &Queue{}
var _ i2cdev.Forgetter = &Queue{}

type job struct {
	handle  i2cdev.TransferHandle
	address byte
	w, r    []byte
}

// result is the state of one queued transfer. dst is the caller's read buffer;
// it is filled from the job's own buffer only when the transfer is polled OK.
type result struct {
	status i2cdev.TransferStatus
	dst    []byte
	data   []byte
}

// Queue hands transfers to a single worker goroutine that owns the bus.
// Transfers of every device sharing the queue run one at a time in start order,
// so StartTransfer returns immediately and PollTransfer never waits.
// The worker never touches the caller's buffers.
type Queue struct {
	mx      sync.Mutex
	bus     i2cdev.Bus
	logger  *slog.Logger
	jobs    chan job
	next    i2cdev.TransferHandle
	results map[i2cdev.TransferHandle]*result
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewQueue(bus i2cdev.Bus, opts ...Option) *Queue {
	o := newOptions(opts)
	ctx, cancel := context.WithCancel(o.ctx)
	q := &Queue{
		bus:     bus,
		logger:  o.logger,
		jobs:    make(chan job, o.depth),
		results: make(map[i2cdev.TransferHandle]*result),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go q.work(ctx)
	return q
}

func (q *Queue) work(ctx context.Context) {
	defer close(q.done)
	for j := range q.jobs {
		err := q.bus.Tx(ctx, j.address, j.w, j.r)
		status := i2cdev.StatusFromError(err)
		if err != nil {
			q.logger.Debug("queued transfer failed", "address", j.address, "status", status, "error", err)
		}
		q.mx.Lock()
		// forgotten transfers have no entry left
		if res, ok := q.results[j.handle]; ok {
			res.status = status
			res.data = j.r
		}
		q.mx.Unlock()
	}
}

func (q *Queue) StartTransfer(address byte, w, r []byte) (i2cdev.TransferHandle, error) {
	q.mx.Lock()
	defer q.mx.Unlock()
	if q.closed {
		return 0, ErrClosed
	}
	q.next++
	j := job{
		handle:  q.next,
		address: address,
		w:       append([]byte(nil), w...),
	}
	if len(r) > 0 {
		j.r = make([]byte, len(r))
	}
	select {
	case q.jobs <- j:
	default:
		q.next--
		return 0, i2cdev.ErrBusBusy
	}
	q.results[j.handle] = &result{status: i2cdev.TransferPending, dst: r}
	return j.handle, nil
}

func (q *Queue) PollTransfer(h i2cdev.TransferHandle) i2cdev.TransferStatus {
	q.mx.Lock()
	defer q.mx.Unlock()
	res, ok := q.results[h]
	if !ok {
		return i2cdev.TransferBusError
	}
	if !res.status.Done() {
		return res.status
	}
	delete(q.results, h)
	if res.status == i2cdev.TransferOK {
		copy(res.dst, res.data)
	}
	return res.status
}

// Forget drops a transfer that will not be polled. If it is still queued it
// runs on the bus, but its outcome and read data are discarded.
func (q *Queue) Forget(h i2cdev.TransferHandle) {
	q.mx.Lock()
	defer q.mx.Unlock()
	delete(q.results, h)
}

// Len returns the number of transfers whose outcome has not been collected.
func (q *Queue) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return len(q.results)
}

// Close stops accepting transfers, cancels the one on the bus and waits for the worker.
func (q *Queue) Close() error {
	q.mx.Lock()
	if q.closed {
		q.mx.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mx.Unlock()
	q.cancel()
	<-q.done
	return nil
}
