package compute

import (
	"fmt"

	"github.com/gomlx/clvec/dtypes"
	"github.com/pkg/errors"
)

// Queue is an in-order command queue: commands execute in the order they are enqueued.
type Queue struct {
	wrapper *wrapper[QueueID]
	ctx     *Context
}

// Destroy the queue. It is a no-op if the queue was already destroyed.
func (q *Queue) Destroy() error {
	if q == nil {
		return nil
	}
	return q.wrapper.Destroy()
}

// IsValid returns whether the queue was created and not yet destroyed.
func (q *Queue) IsValid() bool {
	return q != nil && q.wrapper.IsValid()
}

// Context the queue belongs to.
func (q *Queue) Context() *Context { return q.ctx }

// Finish blocks until all commands enqueued so far complete.
func (q *Queue) Finish() error {
	if !q.IsValid() {
		return errors.New("Queue.Finish: Queue is nil or has already been destroyed")
	}
	return toError("Finish", q.ctx.platform.driver.Finish(q.wrapper.id))
}

// TransferConfig configures a transfer between host memory and a device buffer. Create it with Queue.Write or
// Queue.Read.
type TransferConfig struct {
	queue   *Queue
	buffer  *Buffer
	isWrite bool
	async   bool
	data    []byte
	flat    any
	err     error
}

// Write returns the configuration of a transfer from host memory to buffer. Set the data with FromFlat.
// By default the transfer is blocking.
func (q *Queue) Write(buffer *Buffer) *TransferConfig {
	return q.newTransfer(buffer, true)
}

// Read returns the configuration of a transfer from buffer to host memory. Set the destination with ToFlat.
// By default the transfer is blocking.
func (q *Queue) Read(buffer *Buffer) *TransferConfig {
	return q.newTransfer(buffer, false)
}

func (q *Queue) newTransfer(buffer *Buffer, isWrite bool) *TransferConfig {
	cfg := &TransferConfig{queue: q, buffer: buffer, isWrite: isWrite}
	switch {
	case !q.IsValid():
		cfg.err = errors.New("transfer: Queue is nil or has already been destroyed")
	case !buffer.IsValid():
		cfg.err = errors.New("transfer: Buffer is nil or has already been destroyed")
	case buffer.ctx != q.ctx:
		cfg.err = errors.WithStack(&Error{Op: cfg.op(), Status: InvalidContext,
			Detail: "buffer and queue belong to different contexts"})
	}
	return cfg
}

func (cfg *TransferConfig) op() string {
	if cfg.isWrite {
		return "EnqueueWriteBuffer"
	}
	return "EnqueueReadBuffer"
}

// FromFlat sets the source of a write: a slice of the buffer's dtype with exactly Buffer.Len elements.
func (cfg *TransferConfig) FromFlat(flat any) *TransferConfig {
	if cfg.err != nil {
		return cfg
	}
	if !cfg.isWrite {
		cfg.err = errors.New("FromFlat can only be used with Queue.Write")
		return cfg
	}
	cfg.flat = flat
	cfg.data, cfg.err = cfg.buffer.flatBytes(cfg.op(), flat)
	return cfg
}

// ToFlat sets the destination of a read: a slice of the buffer's dtype with exactly Buffer.Len elements.
func (cfg *TransferConfig) ToFlat(flat any) *TransferConfig {
	if cfg.err != nil {
		return cfg
	}
	if cfg.isWrite {
		cfg.err = errors.New("ToFlat can only be used with Queue.Read")
		return cfg
	}
	cfg.flat = flat
	cfg.data, cfg.err = cfg.buffer.flatBytes(cfg.op(), flat)
	return cfg
}

// Async makes the transfer non-blocking: Done returns as soon as the command is enqueued, and the host memory
// must not be touched until the returned event completes.
func (cfg *TransferConfig) Async() *TransferConfig {
	cfg.async = true
	return cfg
}

// Done enqueues the transfer and returns its event, which the caller owns.
func (cfg *TransferConfig) Done() (*Event, error) {
	if cfg.err != nil {
		return nil, cfg.err
	}
	if cfg.flat == nil {
		return nil, errors.Errorf("%s: no host data given, use FromFlat or ToFlat", cfg.op())
	}
	q := cfg.queue
	driver := q.ctx.platform.driver
	var (
		id     EventID
		status Status
	)
	if cfg.isWrite {
		id, status = driver.EnqueueWriteBuffer(q.wrapper.id, cfg.buffer.wrapper.id, !cfg.async, 0, cfg.data)
	} else {
		id, status = driver.EnqueueReadBuffer(q.wrapper.id, cfg.buffer.wrapper.id, !cfg.async, 0, cfg.data)
	}
	if status.IsError() {
		return nil, errors.WithStack(&Error{Op: cfg.op(), Status: status, Detail: cfg.buffer.String()})
	}
	return newEvent(q, id, fmt.Sprintf("%s(%s)", cfg.op(), cfg.buffer), cfg.flat), nil
}

// WriteFlat copies data to buffer, blocking until the copy completes.
func WriteFlat[T dtypes.Supported](q *Queue, buffer *Buffer, data []T) error {
	event, err := q.Write(buffer).FromFlat(data).Done()
	if err != nil {
		return err
	}
	return event.AwaitAndFree()
}

// ReadFlat copies the contents of buffer to dst, blocking until the copy completes.
func ReadFlat[T dtypes.Supported](q *Queue, buffer *Buffer, dst []T) error {
	event, err := q.Read(buffer).ToFlat(dst).Done()
	if err != nil {
		return err
	}
	return event.AwaitAndFree()
}
