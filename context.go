package kgs

import (
	"github.com/sirupsen/logrus"
)

// Context represents an execution context on one compute device. It owns
// the device's in-order command queue and memory pool. A Context must be
// created before any device operation and closed when no longer needed.
//
// A Context is not safe for concurrent use; callers serialise access.
type Context struct {
	device *Device
	queue  *CommandQueue
	memory *MemoryPool
	log    logrus.FieldLogger
}

// NewContext creates an execution context on the device with the given ID.
func NewContext(deviceID int, log logrus.FieldLogger) (*Context, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	dev, err := deviceByID("NewContext", deviceID)
	if err != nil {
		return nil, err
	}

	c := &Context{
		device: dev,
		queue:  newCommandQueue(),
		memory: NewMemoryPool(),
		log:    log,
	}

	c.log.WithFields(logrus.Fields{
		"device_id":  dev.ID,
		"device":     dev.Name,
		"global_mem": dev.GlobalMem,
		"cores":      dev.NumCores,
	}).Debug("created compute context")

	return c, nil
}

// Device returns the device this context executes on.
func (c *Context) Device() *Device {
	return c.device
}

// Queue returns the context's command queue.
func (c *Context) Queue() *CommandQueue {
	return c.queue
}

// Close waits for outstanding commands and releases the context.
func (c *Context) Close() error {
	c.queue.Release()

	allocated, peak := c.memory.GetStats()
	c.log.WithFields(logrus.Fields{
		"leaked_bytes": allocated,
		"peak_bytes":   peak,
	}).Debug("closed compute context")

	return nil
}
