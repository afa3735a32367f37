package compute

import (
	"fmt"

	"github.com/gomlx/clvec/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context owns the programs, queues and buffers created for one device.
type Context struct {
	wrapper  *wrapper[ContextID]
	platform *Platform
	device   *Device
	options  NamedValuesMap
}

// NewContext creates a context for the device, which must belong to the platform.
// The options are driver specific, and are ignored by drivers that don't understand them.
func (p *Platform) NewContext(device *Device, options NamedValuesMap) (*Context, error) {
	if device == nil {
		return nil, errors.New("NewContext: device is nil")
	}
	if device.platform != p {
		return nil, errors.WithStack(&Error{Op: "NewContext", Status: InvalidDevice,
			Detail: fmt.Sprintf("device %s doesn't belong to platform %q", device, p.name)})
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	id, status := p.driver.CreateContext(device.id, options)
	if err := toError("CreateContext", status); err != nil {
		return nil, err
	}
	c := &Context{
		wrapper:  newWrapper(id, "ReleaseContext", p.driver.ReleaseContext, &contextsAlive),
		platform: p,
		device:   device,
		options:  options,
	}
	addCleanup(c, c.wrapper, "Context")
	klog.V(2).Infof("compute: created context on %s", device)
	return c, nil
}

// Destroy the context. Objects created from it should be destroyed first.
// It is a no-op if the context was already destroyed.
func (c *Context) Destroy() error {
	if c == nil {
		return nil
	}
	return c.wrapper.Destroy()
}

// IsValid returns whether the context was created and not yet destroyed.
func (c *Context) IsValid() bool {
	return c != nil && c.wrapper.IsValid()
}

func (c *Context) check(op string) error {
	if !c.IsValid() {
		return errors.Errorf("%s: Context is nil or has already been destroyed", op)
	}
	return nil
}

// Platform of the context.
func (c *Context) Platform() *Platform { return c.platform }

// Device of the context.
func (c *Context) Device() *Device { return c.device }

// Options given at creation.
func (c *Context) Options() NamedValuesMap { return c.options }

// String implements fmt.Stringer.
func (c *Context) String() string {
	if !c.IsValid() {
		return "Context(destroyed)"
	}
	return fmt.Sprintf("Context(%s)", c.device)
}

// NewQueue creates an in-order command queue for the context's device.
func (c *Context) NewQueue() (*Queue, error) {
	if err := c.check("NewQueue"); err != nil {
		return nil, err
	}
	driver := c.platform.driver
	id, status := driver.CreateCommandQueue(c.wrapper.id, c.device.id)
	if err := toError("CreateCommandQueue", status); err != nil {
		return nil, err
	}
	q := &Queue{
		wrapper: newWrapper(id, "ReleaseCommandQueue", driver.ReleaseCommandQueue, &queuesAlive),
		ctx:     c,
	}
	addCleanup(q, q.wrapper, "Queue")
	return q, nil
}

// NewBuffer allocates a device buffer to hold numElements values of dtype.
func (c *Context) NewBuffer(flags MemFlags, dtype dtypes.DType, numElements int) (*Buffer, error) {
	if err := c.check("NewBuffer"); err != nil {
		return nil, err
	}
	if !dtype.IsValid() {
		return nil, errors.WithStack(&Error{Op: "NewBuffer", Status: InvalidValue,
			Detail: fmt.Sprintf("invalid dtype %s", dtype)})
	}
	if numElements < 0 {
		return nil, errors.WithStack(&Error{Op: "NewBuffer", Status: InvalidBufferSize,
			Detail: fmt.Sprintf("negative number of elements %d", numElements)})
	}
	driver := c.platform.driver
	id, status := driver.CreateBuffer(c.wrapper.id, flags, dtype.SizeForElements(numElements))
	if err := toError("CreateBuffer", status); err != nil {
		return nil, err
	}
	b := &Buffer{
		wrapper: newWrapper(id, "ReleaseBuffer", driver.ReleaseBuffer, &buffersAlive),
		ctx:     c,
		flags:   flags,
		dtype:   dtype,
		length:  numElements,
	}
	addCleanup(b, b.wrapper, "Buffer")
	return b, nil
}
