package at24

import (
	"context"
	"time"

	"eepromcode-go/errcode"

	"tinygo.org/x/drivers"
)

// OwnerConfig controls the request queue. All fields are optional.
type OwnerConfig struct {
	// QueueLen is the request queue depth. Default 16.
	QueueLen int
	// TxTimeout bounds enqueue and completion for Tx, which has no context.
	// Default 250 ms; negative means unbounded.
	TxTimeout time.Duration
}

// request posted to the worker
type request struct {
	fn   func(*Engine) error
	done chan error // buffered(1); worker replies best-effort
}

// Owner hosts a single worker goroutine that owns the Engine. Each request
// runs a complete transaction, so phases never interleave between callers.
type Owner struct {
	e         *Engine
	reqs      chan request
	quit      chan struct{}
	stopped   chan struct{}
	txTimeout time.Duration
}

// Ensure compile-time conformance with drivers.I2C
var _ drivers.I2C = (*Owner)(nil)

// NewOwner starts the worker. The engine must not be used directly
// afterwards.
func NewOwner(e *Engine, cfg OwnerConfig) *Owner {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 16
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = 250 * time.Millisecond
	}
	o := &Owner{
		e:         e,
		reqs:      make(chan request, cfg.QueueLen),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		txTimeout: cfg.TxTimeout,
	}
	go o.loop()
	return o
}

func (o *Owner) loop() {
	defer close(o.stopped)
	for {
		select {
		case req := <-o.reqs:
			err := req.fn(o.e)
			if err != nil || o.e.Phase() != PhaseIdle {
				// The next request starts from a released bus.
				_ = o.e.Abort()
			}
			// best-effort reply; do not block the worker
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

// Close stops the worker after the transaction in progress, if any.
func (o *Owner) Close() {
	select {
	case <-o.quit:
	default:
		close(o.quit)
	}
	<-o.stopped
}

// Do runs fn on the worker with exclusive use of the engine. If fn fails or
// leaves a transaction open, the worker aborts it before the next request;
// fn's own error is what Do returns. ctx bounds both the wait for a queue slot
// (errcode.Busy) and the wait for completion (errcode.Timeout); a
// transaction already on the bus is never interrupted.
func (o *Owner) Do(ctx context.Context, fn func(*Engine) error) error {
	const op = "at24.Owner"
	select {
	case <-o.quit:
		return errOwnerClosed(op)
	default:
	}
	req := request{fn: fn, done: make(chan error, 1)}

	select {
	case o.reqs <- req:
	case <-o.quit:
		return errOwnerClosed(op)
	case <-ctx.Done():
		return &errcode.E{C: errcode.Busy, Op: op, Err: ctx.Err()}
	}

	select {
	case err := <-req.done:
		return err
	case <-o.stopped:
		// The worker may have answered just before it stopped.
		select {
		case err := <-req.done:
			return err
		default:
			return errOwnerClosed(op)
		}
	case <-ctx.Done():
		return &errcode.E{C: errcode.Timeout, Op: op, Err: ctx.Err()}
	}
}

func errOwnerClosed(op string) error {
	return errcode.New(errcode.Unsupported, op, "owner closed")
}

// ReadAt reads len(buf) bytes from word address word of the part answering
// at target.
func (o *Owner) ReadAt(ctx context.Context, target, word uint8, buf []byte) error {
	if len(buf) == 0 {
		return errcode.New(errcode.InvalidParams, "at24.ReadAt", "empty buffer")
	}
	// The worker fills its own buffer so a caller that gave up is never
	// written to after it returned.
	tmp := make([]byte, len(buf))
	err := o.Do(ctx, func(e *Engine) error {
		if e.Target() != target {
			if err := e.SetTarget(target); err != nil {
				return err
			}
		}
		return e.ReadBlock(word, tmp)
	})
	if err != nil {
		return err
	}
	copy(buf, tmp)
	return nil
}

// Tx implements drivers.I2C for random reads only: w must hold exactly the
// one-byte word address and r at least one byte. Writes are not supported.
func (o *Owner) Tx(addr uint16, w, r []byte) error {
	const op = "at24.Tx"
	if addr > 0x7F {
		return errcode.New(errcode.InvalidParams, op, "not a 7-bit address")
	}
	if len(w) != 1 || len(r) == 0 {
		return errcode.New(errcode.Unsupported, op, "only word-address random reads")
	}
	ctx := context.Background()
	if o.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.txTimeout)
		defer cancel()
	}
	return o.ReadAt(ctx, uint8(addr), w[0], r)
}
