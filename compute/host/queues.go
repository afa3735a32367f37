package host

import (
	"fmt"
	"sync"

	"github.com/gomlx/clvec/compute"
)

// commandBacklog is the number of commands that can be enqueued before Enqueue* calls block.
const commandBacklog = 64

// hostQueue executes its commands in order, in one goroutine.
type hostQueue struct {
	ctx      *hostContext
	mu       sync.Mutex
	closed   bool
	commands chan *command
}

// command enqueued on a queue. run returns the final status of the command and, on failure, a description.
type command struct {
	event *hostEvent
	run   func() (compute.Status, string)
}

// hostEvent tracks the execution of one command.
type hostEvent struct {
	done chan struct{}

	mu     sync.Mutex
	status compute.EventStatus
	detail string
}

func newHostEvent() *hostEvent {
	return &hostEvent{done: make(chan struct{}), status: compute.EventQueued}
}

func (e *hostEvent) setStatus(status compute.EventStatus, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.detail = detail
}

func (e *hostEvent) get() (compute.EventStatus, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.detail
}

// worker loop of a queue: it runs until the queue is released and all its pending commands are executed.
func (q *hostQueue) worker() {
	for cmd := range q.commands {
		cmd.event.setStatus(compute.EventRunning, "")
		status, detail := cmd.run()
		if status.IsError() {
			cmd.event.setStatus(compute.EventStatus(status), detail)
		} else {
			cmd.event.setStatus(compute.EventComplete, "")
		}
		close(cmd.event.done)
	}
}

// CreateCommandQueue implements compute.Driver.
func (d *Driver) CreateCommandQueue(ctx compute.ContextID, device compute.DeviceID) (compute.QueueID, compute.Status) {
	if device != deviceID {
		return 0, compute.InvalidDevice
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, found := d.contexts[ctx]
	if !found {
		return 0, compute.InvalidContext
	}
	q := &hostQueue{ctx: c, commands: make(chan *command, commandBacklog)}
	go q.worker()
	id := compute.QueueID(d.newID())
	d.queues[id] = q
	return id, compute.Success
}

// ReleaseCommandQueue implements compute.Driver. Commands already enqueued still execute.
func (d *Driver) ReleaseCommandQueue(queue compute.QueueID) compute.Status {
	d.mu.Lock()
	q, found := d.queues[queue]
	delete(d.queues, queue)
	d.mu.Unlock()
	if !found {
		return compute.InvalidCommandQueue
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	close(q.commands)
	return compute.Success
}

// enqueue a command on the queue, and register its event. If blocking, it waits for the command to complete.
func (d *Driver) enqueue(queue compute.QueueID, blocking bool, run func() (compute.Status, string)) (compute.EventID, compute.Status) {
	d.mu.Lock()
	q, found := d.queues[queue]
	if !found {
		d.mu.Unlock()
		return 0, compute.InvalidCommandQueue
	}
	event := newHostEvent()
	id := compute.EventID(d.newID())
	d.events[id] = event
	d.mu.Unlock()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		d.mu.Lock()
		delete(d.events, id)
		d.mu.Unlock()
		return 0, compute.InvalidCommandQueue
	}
	q.commands <- &command{event: event, run: run}
	q.mu.Unlock()

	if blocking {
		<-event.done
	}
	return id, compute.Success
}

// Finish implements compute.Driver: it enqueues a marker and waits for it.
func (d *Driver) Finish(queue compute.QueueID) compute.Status {
	id, status := d.enqueue(queue, true, func() (compute.Status, string) { return compute.Success, "" })
	if status.IsError() {
		return status
	}
	return d.ReleaseEvent(id)
}

// transferBuffer validates a transfer and returns the buffer. It must be called with mu locked.
func (d *Driver) transferBuffer(buffer compute.BufferID, offset, size int) (*hostBuffer, compute.Status) {
	b, found := d.buffers[buffer]
	if !found {
		return nil, compute.InvalidMemObject
	}
	if offset < 0 || size <= 0 || offset+size > len(b.data) {
		return nil, compute.InvalidValue
	}
	return b, compute.Success
}

// EnqueueWriteBuffer implements compute.Driver.
func (d *Driver) EnqueueWriteBuffer(queue compute.QueueID, buffer compute.BufferID, blocking bool, offset int, data []byte) (compute.EventID, compute.Status) {
	d.mu.Lock()
	b, status := d.transferBuffer(buffer, offset, len(data))
	d.mu.Unlock()
	if status.IsError() {
		return 0, status
	}
	return d.enqueue(queue, blocking, func() (compute.Status, string) {
		copy(b.data[offset:], data)
		return compute.Success, ""
	})
}

// EnqueueReadBuffer implements compute.Driver.
func (d *Driver) EnqueueReadBuffer(queue compute.QueueID, buffer compute.BufferID, blocking bool, offset int, dst []byte) (compute.EventID, compute.Status) {
	d.mu.Lock()
	b, status := d.transferBuffer(buffer, offset, len(dst))
	d.mu.Unlock()
	if status.IsError() {
		return 0, status
	}
	return d.enqueue(queue, blocking, func() (compute.Status, string) {
		copy(dst, b.data[offset:offset+len(dst)])
		return compute.Success, ""
	})
}

// WaitForEvents implements compute.Driver.
func (d *Driver) WaitForEvents(events ...compute.EventID) compute.Status {
	if len(events) == 0 {
		return compute.InvalidValue
	}
	hostEvents := make([]*hostEvent, 0, len(events))
	d.mu.Lock()
	for _, id := range events {
		e, found := d.events[id]
		if !found {
			d.mu.Unlock()
			return compute.InvalidEvent
		}
		hostEvents = append(hostEvents, e)
	}
	d.mu.Unlock()

	result := compute.Success
	for _, e := range hostEvents {
		<-e.done
		if status, _ := e.get(); status < 0 {
			result = compute.ExecStatusErrorInWaitList
		}
	}
	return result
}

// EventStatus implements compute.Driver. Failed commands report their (negative) error status.
func (d *Driver) EventStatus(event compute.EventID) (compute.EventStatus, compute.Status) {
	d.mu.Lock()
	e, found := d.events[event]
	d.mu.Unlock()
	if !found {
		return 0, compute.InvalidEvent
	}
	status, _ := e.get()
	return status, compute.Success
}

// EventDetail implements compute.EventDetailer.
func (d *Driver) EventDetail(event compute.EventID) string {
	d.mu.Lock()
	e, found := d.events[event]
	d.mu.Unlock()
	if !found {
		return fmt.Sprintf("unknown event #%d", event)
	}
	_, detail := e.get()
	return detail
}

// ReleaseEvent implements compute.Driver. The command keeps executing if it hasn't finished.
func (d *Driver) ReleaseEvent(event compute.EventID) compute.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, found := d.events[event]; !found {
		return compute.InvalidEvent
	}
	delete(d.events, event)
	return compute.Success
}
