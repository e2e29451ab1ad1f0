// Package ipc defines the service protocol spoken over the parent
// endpoint. Tasks hold a badged alias of one shared endpoint; a request is
// a labeled synchronous call and the badge tells the receiver who sent it.
package ipc

import (
	"selos/kernel"
	"selos/kernel/sel4"
)

// Service-event labels. Values below 0x1000 are reserved for kernel fault
// messages on the same endpoint.
const (
	EventCreateTask uint64 = 0x1000 + iota
	EventSwitchTask
	EventExitTask
	EventExitSystem
)

// Client issues service requests over the parent endpoint.
type Client struct {
	inv sel4.Invoker
	ep  sel4.CPtr
}

// NewClient returns a client calling through ep.
func NewClient(inv sel4.Invoker, ep sel4.CPtr) *Client {
	return &Client{inv: inv, ep: ep}
}

// CreateTask asks the parent to construct and start a task. The reply is
// an opaque token identifying the new task.
func (c *Client) CreateTask(entry, stack uintptr, priority uint8, tls uintptr) (uint64, *kernel.Error) {
	return c.inv.Call(c.ep, EventCreateTask,
		uint64(entry), uint64(stack), uint64(priority), uint64(tls))
}

// SwitchTask asks the parent to run the task behind token.
func (c *Client) SwitchTask(token uint64) *kernel.Error {
	_, err := c.inv.Call(c.ep, EventSwitchTask, token)
	return err
}

// ExitTask asks the parent to destroy the task behind token.
func (c *Client) ExitTask(token uint64) *kernel.Error {
	_, err := c.inv.Call(c.ep, EventExitTask, token)
	return err
}

// ExitSystem asks the parent to shut the system down with the given exit
// code. It only returns if the parent declines.
func (c *Client) ExitSystem(code uint64) *kernel.Error {
	_, err := c.inv.Call(c.ep, EventExitSystem, code)
	return err
}
