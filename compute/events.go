package compute

import (
	"runtime"

	"github.com/pkg/errors"
)

// Event tracks the completion of an enqueued command.
type Event struct {
	wrapper *wrapper[EventID]
	queue   *Queue
	op      string

	// keepAlive holds host memory that the command may still access.
	keepAlive any
}

func newEvent(q *Queue, id EventID, op string, keepAlive any) *Event {
	e := &Event{
		wrapper:   newWrapper(id, "ReleaseEvent", q.ctx.platform.driver.ReleaseEvent, &eventsAlive),
		queue:     q,
		op:        op,
		keepAlive: keepAlive,
	}
	addCleanup(e, e.wrapper, "Event")
	return e
}

// Await blocks until the command completes. If the command failed, it returns an error with the status of the
// command.
func (e *Event) Await() error {
	if !e.wrapper.IsValid() {
		return errors.New("Event.Await: Event is nil or has already been destroyed")
	}
	defer runtime.KeepAlive(e)
	driver := e.queue.ctx.platform.driver
	status := driver.WaitForEvents(e.wrapper.id)
	if !status.IsError() {
		return nil
	}
	if status == ExecStatusErrorInWaitList {
		// Report the status of the command itself.
		if cmdStatus, s := driver.EventStatus(e.wrapper.id); !s.IsError() && cmdStatus < 0 {
			status = Status(cmdStatus)
		}
	}
	err := &Error{Op: e.op, Status: status}
	if detailer, ok := driver.(EventDetailer); ok {
		err.Detail = detailer.EventDetail(e.wrapper.id)
	}
	return errors.WithStack(err)
}

// AwaitAndFree waits for the command and destroys the event.
func (e *Event) AwaitAndFree() error {
	err := e.Await()
	if destroyErr := e.Destroy(); err == nil {
		err = destroyErr
	}
	return err
}

// Status of the command associated with the event, without blocking.
func (e *Event) Status() (EventStatus, error) {
	if !e.wrapper.IsValid() {
		return 0, errors.New("Event.Status: Event is nil or has already been destroyed")
	}
	status, s := e.queue.ctx.platform.driver.EventStatus(e.wrapper.id)
	if err := toError("EventStatus", s); err != nil {
		return 0, err
	}
	return status, nil
}

// Destroy the event. It is a no-op if the event was already destroyed.
func (e *Event) Destroy() error {
	if e == nil {
		return nil
	}
	err := e.wrapper.Destroy()
	e.keepAlive = nil
	return err
}
